package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("WEBHOOK_SECRET", "whsec_test")
	t.Setenv("PROCESSOR_API_URL", "http://localhost:9000")
	t.Setenv("PROCESSOR_API_KEY", "pk_test")
	t.Setenv("PROCESSOR_SECRET_KEY", "sk_test")
	t.Setenv("MERCHANT_API_KEY", "mk_test")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.PaymentTTL)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, "kafka", cfg.EventTransport)
	assert.Equal(t, "payment-events", cfg.PaymentEventTopic)
}

func TestLoadConfig_MissingWebhookSecretFailsStartup(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err, "no secret means no verifiable webhooks, refuse to start")
}

func TestLoadConfig_SNSTransportRequiresTopic(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EVENT_TRANSPORT", "sns")

	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PAYMENT_SNS_TOPIC_ARN", "arn:aws:sns:eu-central-1:000000000000:payment-events")
	cfg, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "sns", cfg.EventTransport)
}

func TestLoadConfig_PostgresRequiresCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "postgres")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("PAYMENT_TTL_SECONDS", "600")
	assert.Equal(t, 10*time.Minute, getDurationEnv("PAYMENT_TTL_SECONDS", 900))

	t.Setenv("PAYMENT_TTL_SECONDS", "not-a-number")
	assert.Equal(t, 15*time.Minute, getDurationEnv("PAYMENT_TTL_SECONDS", 900))
}
