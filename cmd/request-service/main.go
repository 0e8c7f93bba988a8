package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-songrequest/internal/auth"
	"ms-songrequest/internal/bridge"
	bridgeapi "ms-songrequest/internal/bridge/api"
	"ms-songrequest/internal/catalog"
	catalogapi "ms-songrequest/internal/catalog/api"
	"ms-songrequest/internal/command"
	cmdredis "ms-songrequest/internal/command/redis"
	"ms-songrequest/internal/config"
	"ms-songrequest/internal/database"
	"ms-songrequest/internal/database/migrations"
	"ms-songrequest/internal/donation"
	"ms-songrequest/internal/kafka"
	"ms-songrequest/internal/ledger"
	ledgerapi "ms-songrequest/internal/ledger/api"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/overlay"
	"ms-songrequest/internal/payment"
	paymentapi "ms-songrequest/internal/payment/api"
	"ms-songrequest/internal/queue"
	queueapi "ms-songrequest/internal/queue/api"
	"ms-songrequest/internal/settings"
	settingsapi "ms-songrequest/internal/settings/api"
	"ms-songrequest/internal/sse"
)

func prepareSchema(ctx context.Context, cfg *config.Config, bunDB *bun.DB, log *logger.Logger) {
	if cfg.Database.Driver == "postgres" && cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.Initialize(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize migrations: %v", err))
		}
		defer func() {
			if err := runner.Close(); err != nil {
				log.Warn("DATABASE", fmt.Sprintf("Failed to close migration runner: %v", err))
			}
		}()
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
		}
		log.Info("DATABASE", "Migrations applied successfully")
		return
	}

	if err := database.CreateTables(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create tables: %v", err))
	}
	log.Info("DATABASE", "Schema ensured")
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Request Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()
	log.Info("DATABASE", fmt.Sprintf("✅ Connected using %s driver", cfg.Database.Driver))

	prepareSchema(ctx, cfg, bunDB, log)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	defer redisClient.Close()
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	topics := cfg.Kafka.Topics
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{
		topics.ChatMessages,
		topics.ChatReplies,
		topics.DonationEvents,
		topics.WorkerCommands,
	}); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	replies := kafka.NewProducer(cfg.Kafka.Brokers, topics.ChatReplies)
	commands := kafka.NewProducer(cfg.Kafka.Brokers, topics.WorkerCommands)
	donations := kafka.NewProducer(cfg.Kafka.Brokers, topics.DonationEvents)
	defer replies.Close()
	defer commands.Close()
	defer donations.Close()
	log.Info("KAFKA", "Kafka producers initialized successfully")

	settingsService := settings.NewService(&settings.DB{Bun: bunDB}, log)
	queueService := queue.NewService(&queue.DB{Bun: bunDB}, log)
	ledgerService := ledger.NewService(&ledger.DB{Bun: bunDB}, log)
	catalogClient := catalog.NewClient(cfg.Catalog, &http.Client{Timeout: cfg.Catalog.Timeout}, log)
	correlation := bridge.New(log)
	events := sse.NewEmitter()

	donationRouter := donation.NewRouter(settingsService, ledgerService, replies, log)

	interpreter := &command.Interpreter{
		Queue:      queueService,
		Ledger:     ledgerService,
		Catalog:    catalogClient,
		Settings:   settingsService,
		Chat:       replies,
		Lock:       cmdredis.NewRedis(redisClient, log),
		Log:        log,
		OperatorID: cfg.Auth.OperatorID,
		SelfID:     cfg.Worker.SelfID,
		OnQueueChange: func() {
			events.Emit(sse.Event{Type: sse.EventQueueChanged})
		},
	}

	// Settings changes fan out to the overlay and the chat worker.
	settingsService.OnChange(func(s models.Settings) {
		events.Emit(sse.Event{Type: sse.EventSettingsChanged, Payload: s})
		if err := commands.PublishWorkerCommand(models.WorkerCommand{Type: models.WorkerCmdReload}); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Failed to publish reload command: %v", err))
		}
	})

	if cfg.Kafka.Enabled {
		chatConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.ChatMessages, cfg.Kafka.GroupID, log)
		donationConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.DonationEvents, cfg.Kafka.GroupID, log)
		defer chatConsumer.Close()
		defer donationConsumer.Close()

		go chatConsumer.StartChatMessages(ctx, func(msg models.ChatMessage) {
			interpreter.Handle(ctx, msg)
		})
		go donationConsumer.StartDonationEvents(ctx, func(event models.DonationEvent) {
			donationRouter.OnDonation(ctx, event)
		})
		log.Info("KAFKA", "Chat and donation consumers started")
	} else {
		log.Warn("KAFKA", "Kafka disabled, chat and donation streams are not consumed")
	}

	settingsHandler := &settingsapi.Handler{Settings: settingsService}
	queueHandler := &queueapi.Handler{Queue: queueService, Ledger: ledgerService, Events: events, Log: log}
	catalogHandler := &catalogapi.Handler{Catalog: catalogClient}
	ledgerHandler := &ledgerapi.Handler{Ledger: ledgerService, Donations: donationRouter, Commands: commands, Log: log}
	bridgeHandler := &bridgeapi.Handler{Bridge: correlation, Commands: commands, Timeout: cfg.Server.BridgeTimeout, Log: log}
	overlayHandler := &overlay.Handler{Generator: overlay.NewGenerator(cfg.Overlay.PublicURL)}
	sseHandler := queueapi.NewSSEHandler(log, events)

	var paymentHandler *paymentapi.Handler
	if cfg.Stripe.SecretKey != "" {
		paymentService, err := payment.NewService(cfg.Stripe, donations, log)
		if err != nil {
			log.Fatal("STRIPE", fmt.Sprintf("Failed to initialize Stripe: %v", err))
		}
		paymentHandler = &paymentapi.Handler{Payments: paymentService}
	} else {
		log.Warn("STRIPE", "STRIPE_SECRET_KEY not set, support checkout disabled")
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public Routes ---
		r.Get("/settings", settingsHandler.GetSettings)
		r.Get("/music/{query}", catalogHandler.SearchMusic)
		r.Get("/songs", queueHandler.ListSongs)
		r.Get("/songs/current", queueHandler.CurrentSong)
		r.Delete("/songs/latest", queueHandler.DeleteLatest)
		r.Get("/overlay/qr", overlayHandler.QueueQR)
		r.Get("/events", sseHandler.HandleEvents)

		if paymentHandler != nil {
			r.Post("/support/checkout", paymentHandler.CreateCheckout)
			r.Post("/support/webhook", paymentHandler.HandleWebhook)
		}

		// --- Authenticated Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth.JWTSecret))

			// The worker settles handshakes with its own signed token.
			r.Post("/handshake/resolve", bridgeHandler.Resolve)
			r.Post("/handshake/reject", bridgeHandler.Reject)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireOperator(cfg.Auth.OperatorID))

				r.Put("/settings", settingsHandler.UpdateSettings)
				r.Post("/songs", queueHandler.CreateSong)
				r.Post("/songs/advance", queueHandler.AdvanceQueue)
				r.Put("/songs/{id}", queueHandler.UpdateSong)
				r.Delete("/songs/all", queueHandler.DeleteAllSongs)
				r.Delete("/songs/limit-reset", queueHandler.ResetLimits)
				r.Delete("/songs/{id}", queueHandler.DeleteSong)

				r.Get("/users/list", bridgeHandler.ListUsers)
				r.Post("/users/paid", ledgerHandler.GrantPaid)
				r.Get("/users/ticket", ledgerHandler.ListTickets)
				r.Put("/users/ticket", ledgerHandler.IssueTickets)
				r.Patch("/users/ticket/{id}", ledgerHandler.ConsumeTicket)
			})
		})
	})

	// No write timeout: /events holds SSE connections open indefinitely.
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Request Service running on :%s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Request Service shutdown complete")
	}
}
