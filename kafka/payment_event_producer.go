package kafka

import (
	"context"
	"encoding/json"

	"github.com/sukruuzun/PayKript/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentEventProducer publishes terminal-state payment events to the order
// subsystem, keyed by order_id so events for one order stay ordered.
type PaymentEventProducer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewPaymentEventProducer(brokers []string, topic string, logger *zap.Logger) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Payment event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &PaymentEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *PaymentEventProducer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to send payment event",
			zap.String("event_type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Payment event published",
		zap.String("event_type", event.Type),
		zap.String("order_id", event.OrderID),
	)
	return nil
}

func (p *PaymentEventProducer) Close() {
	_ = p.writer.Close()
	p.logger.Info("Kafka producer closed")
}
