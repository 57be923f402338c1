package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the service configuration. Missing required values are a
// fatal startup error, never a per-request failure: in particular a missing
// webhook secret must stop the service before a single unverifiable webhook
// can be accepted.
type Config struct {
	Port        string
	Environment string

	DBDriver         string // "postgres" or "memory"
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	WebhookSecret      string
	ProcessorAPIURL    string
	ProcessorAPIKey    string
	ProcessorSecretKey string
	MerchantAPIKey     string

	PaymentTTL    time.Duration
	SweepInterval time.Duration
	ConsumerTTL   time.Duration

	EventTransport      string // "kafka" or "sns"
	KafkaBrokers        string
	PaymentEventTopic   string
	PaymentRequestTopic string
	ConsumerGroupID     string
	PaymentSNSTopicARN  string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		ProcessorAPIURL:    os.Getenv("PROCESSOR_API_URL"),
		ProcessorAPIKey:    os.Getenv("PROCESSOR_API_KEY"),
		ProcessorSecretKey: os.Getenv("PROCESSOR_SECRET_KEY"),
		MerchantAPIKey:     os.Getenv("MERCHANT_API_KEY"),

		PaymentTTL:    getDurationEnv("PAYMENT_TTL_SECONDS", 900),
		SweepInterval: getDurationEnv("SWEEP_INTERVAL_SECONDS", 15),
		ConsumerTTL:   getDurationEnv("CONSUMER_PAYMENT_TTL_SECONDS", 900),

		EventTransport:      getEnv("EVENT_TRANSPORT", "kafka"),
		KafkaBrokers:        getEnv("KAFKA_BROKERS", "localhost:9092"),
		PaymentEventTopic:   getEnv("PAYMENT_EVENT_TOPIC", "payment-events"),
		PaymentRequestTopic: os.Getenv("PAYMENT_REQUEST_TOPIC"),
		ConsumerGroupID:     getEnv("CONSUMER_GROUP_ID", "payment-reconciler-group"),
		PaymentSNSTopicARN:  os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
	}

	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if cfg.ProcessorAPIURL == "" || cfg.ProcessorAPIKey == "" || cfg.ProcessorSecretKey == "" {
		return nil, fmt.Errorf("PROCESSOR_API_URL, PROCESSOR_API_KEY and PROCESSOR_SECRET_KEY are required")
	}
	if cfg.MerchantAPIKey == "" {
		return nil, fmt.Errorf("MERCHANT_API_KEY is required")
	}
	if cfg.DBDriver == "postgres" {
		if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
			return nil, fmt.Errorf("missing required POSTGRES_* environment variables")
		}
	}
	if cfg.EventTransport == "sns" && cfg.PaymentSNSTopicARN == "" {
		return nil, fmt.Errorf("PAYMENT_SNS_TOPIC_ARN is required when EVENT_TRANSPORT=sns")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallbackSeconds int) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("Warning: invalid %s=%q, using default %ds", key, val, fallbackSeconds)
	}
	return time.Duration(fallbackSeconds) * time.Second
}
