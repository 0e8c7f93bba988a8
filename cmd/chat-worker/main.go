package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-songrequest/internal/config"
	"ms-songrequest/internal/kafka"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
	"ms-songrequest/internal/worker"
)

// The chat worker is the answering side of the system: it sits on the
// live platform connection, relays chat and donations into Kafka, posts
// replies back into the room, and settles user-list handshakes against
// the request service.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Chat Worker initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if cfg.Worker.LiveID == "" {
		log.Fatal("CONFIG", "WORKER_LIVE_ID not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := cfg.Kafka.Topics
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{
		topics.ChatMessages,
		topics.ChatReplies,
		topics.DonationEvents,
		topics.WorkerCommands,
	}); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	chatMessages := kafka.NewProducer(cfg.Kafka.Brokers, topics.ChatMessages)
	donations := kafka.NewProducer(cfg.Kafka.Brokers, topics.DonationEvents)
	defer chatMessages.Close()
	defer donations.Close()
	log.Info("KAFKA", "Kafka producers initialized successfully")

	live := worker.NewRESTLiveClient(cfg.Worker, log)
	callback := worker.NewCallbackClient(cfg.Worker.CallbackURL, cfg.Auth.JWTSecret, cfg.Worker.SelfID, log)

	dispatcher := &worker.Dispatcher{
		Live:     live,
		Callback: callback,
		OnReload: func() {
			log.Info("WORKER", "Settings changed, session caches dropped")
		},
		Log: log,
	}

	commandConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.WorkerCommands, cfg.Kafka.GroupID, log)
	replyConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.ChatReplies, cfg.Kafka.GroupID, log)
	defer commandConsumer.Close()
	defer replyConsumer.Close()

	go commandConsumer.StartWorkerCommands(ctx, func(cmd models.WorkerCommand) {
		dispatcher.Handle(ctx, cmd)
	})
	go replyConsumer.StartChatReplies(ctx, func(reply models.ChatReply) {
		if err := live.SendMessage(ctx, reply.Text); err != nil {
			log.Error("WORKER", fmt.Sprintf("Failed to send chat reply: %v", err))
		}
	})

	go func() {
		log.Info("LIVE", fmt.Sprintf("🚀 Relaying live session %s", cfg.Worker.LiveID))
		err := live.Run(ctx,
			func(msg models.ChatMessage) {
				if err := chatMessages.PublishChatMessage(msg); err != nil {
					log.Error("KAFKA", fmt.Sprintf("Failed to relay chat message: %v", err))
				}
			},
			func(event models.DonationEvent) {
				log.LogDonation(event.DonorID, fmt.Sprintf("Relaying donation worth %d", event.Total()))
				if err := donations.PublishDonationEvent(event); err != nil {
					log.Error("KAFKA", fmt.Sprintf("Failed to relay donation: %v", err))
				}
			},
		)
		if err != nil && ctx.Err() == nil {
			log.Fatal("LIVE", fmt.Sprintf("Live relay stopped: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Worker started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, stopping relay")
	cancel()
	log.Info("APP", "✅ Chat Worker shutdown complete")
}
