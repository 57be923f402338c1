package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sukruuzun/PayKript/models"
	"github.com/sukruuzun/PayKript/repository"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentRequestConsumer creates pending payments from order-subsystem
// requests arriving over Kafka, the async variant of POST /api/v1/payments.
type PaymentRequestConsumer struct {
	reader *kafkago.Reader
	repo   repository.PaymentRepository
	ttl    time.Duration
	logger *zap.Logger
	topic  string
}

func NewPaymentRequestConsumer(brokers []string, topic, groupID string, repo repository.PaymentRepository, ttl time.Duration, logger *zap.Logger) *PaymentRequestConsumer {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		logger.Fatal("PaymentRequestConsumer topic is empty")
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	logger.Info("PaymentRequestConsumer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
	)
	return &PaymentRequestConsumer{reader: r, repo: repo, ttl: ttl, logger: logger, topic: topic}
}

func (c *PaymentRequestConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting PaymentRequestConsumer", zap.String("topic", c.topic))
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("PaymentRequestConsumer stopped")
				return
			}
			c.logger.Warn("Error reading payment request", zap.Error(err))
			continue
		}

		var req models.PaymentRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			c.logger.Warn("Invalid payment request JSON", zap.Error(err), zap.String("payload", string(m.Value)))
			continue
		}
		if req.OrderID == "" || req.Address == "" || req.Amount == "" {
			c.logger.Warn("Payment request missing fields", zap.String("order_id", req.OrderID))
			continue
		}

		currency := req.Currency
		if currency == "" {
			currency = "USDT"
		}

		payment := &models.Payment{
			PaymentID: uuid.New(),
			OrderID:   req.OrderID,
			Address:   req.Address,
			Amount:    req.Amount,
			Currency:  currency,
			Status:    models.StatusPending,
			ExpiresAt: time.Now().Add(c.ttl),
		}
		if err := c.repo.Create(ctx, payment); err != nil {
			c.logger.Error("Failed to create payment record",
				zap.String("order_id", req.OrderID),
				zap.Error(err),
			)
			continue
		}

		c.logger.Info("Pending payment created from request",
			zap.String("payment_id", payment.PaymentID.String()),
			zap.String("order_id", payment.OrderID),
		)
	}
}

func (c *PaymentRequestConsumer) Close() error {
	return c.reader.Close()
}
