package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sukruuzun/PayKript/models"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, message []byte) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// Publish publishes a raw message to the given SNS topic ARN.
func (s *SNSClient) Publish(ctx context.Context, topicArn string, message []byte) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	body := string(message)
	input := &sns.PublishInput{
		TopicArn: &topicArn,
		Message:  &body,
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}

// SNSEventPublisher adapts an SNSPublisher to the reconciler's event
// publisher interface, the SNS counterpart of the Kafka producer.
type SNSEventPublisher struct {
	sns      SNSPublisher
	topicArn string
	logger   *zap.Logger
}

func NewSNSEventPublisher(sns SNSPublisher, topicArn string, logger *zap.Logger) *SNSEventPublisher {
	return &SNSEventPublisher{sns: sns, topicArn: topicArn, logger: logger}
}

func (p *SNSEventPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.sns.Publish(ctx, p.topicArn, payload); err != nil {
		return err
	}
	p.logger.Info("Payment event published to SNS",
		zap.String("event_type", event.Type),
		zap.String("order_id", event.OrderID),
	)
	return nil
}
