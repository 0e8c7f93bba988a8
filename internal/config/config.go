package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Worker   WorkerConfig
	Overlay  OverlayConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// BridgeTimeout is the deadline HTTP handlers impose on correlation
	// bridge round-trips. The bridge itself never times out.
	BridgeTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	// MigrationsDir holds golang-migrate SQL files (postgres only).
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	ChatMessages   string
	ChatReplies    string
	DonationEvents string
	WorkerCommands string
}

type CatalogConfig struct {
	TrackSearchURL string
	VideoSearchURL string
	VideoAPIKey    string
	Timeout        time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type AuthConfig struct {
	// JWTSecret signs operator tokens for the mutating API routes.
	JWTSecret string
	// OperatorID is the chat identity allowed to run operator commands.
	OperatorID string
}

type WorkerConfig struct {
	// CallbackURL is the request-service base URL the worker posts
	// handshake resolutions back to.
	CallbackURL string
	// LiveAPIURL is the base URL of the live-platform adapter the worker
	// polls for chat and donations.
	LiveAPIURL string
	// LiveID identifies the running live session.
	LiveID string
	// SelfID is the bot's own chat identity; its messages are ignored.
	SelfID       string
	PollInterval time.Duration
}

type OverlayConfig struct {
	// PublicURL is what the overlay QR code points at.
	PublicURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", ":8080"),
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			BridgeTimeout: time.Duration(getEnvInt("BRIDGE_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "sqlite"),
			DSN:           getEnv("DB_DSN", "file:songrequest.db?cache=shared&_pragma=busy_timeout(5000)"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID: getEnv("KAFKA_GROUP_ID", "song-request-group"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				ChatMessages:   getEnv("KAFKA_TOPIC_CHAT_MESSAGES", "chat-messages"),
				ChatReplies:    getEnv("KAFKA_TOPIC_CHAT_REPLIES", "chat-replies"),
				DonationEvents: getEnv("KAFKA_TOPIC_DONATIONS", "donation-events"),
				WorkerCommands: getEnv("KAFKA_TOPIC_WORKER_COMMANDS", "worker-commands"),
			},
		},
		Catalog: CatalogConfig{
			TrackSearchURL: getEnv("CATALOG_TRACK_SEARCH_URL", "https://www.music-flo.com/api/search/v2/search"),
			VideoSearchURL: getEnv("CATALOG_VIDEO_SEARCH_URL", "https://www.googleapis.com/youtube/v3"),
			VideoAPIKey:    getEnv("CATALOG_VIDEO_API_KEY", ""),
			Timeout:        time.Duration(getEnvInt("CATALOG_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      getEnv("STRIPE_CURRENCY", "usd"),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:8080/support/thanks"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:8080/support"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("OPERATOR_JWT_SECRET", ""),
			OperatorID: getEnv("OPERATOR_ID", ""),
		},
		Worker: WorkerConfig{
			CallbackURL:  getEnv("WORKER_CALLBACK_URL", "http://localhost:8080"),
			LiveAPIURL:   getEnv("WORKER_LIVE_API_URL", "http://localhost:9090"),
			LiveID:       getEnv("WORKER_LIVE_ID", ""),
			SelfID:       getEnv("WORKER_SELF_ID", ""),
			PollInterval: time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)) * time.Second,
		},
		Overlay: OverlayConfig{
			PublicURL: getEnv("OVERLAY_PUBLIC_URL", "http://localhost:8080/queue"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
