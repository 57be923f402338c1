package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"
	awspkg "github.com/sukruuzun/PayKript/pkg/aws"
	"github.com/sukruuzun/PayKript/repository"

	"go.uber.org/zap"
)

// EventPublisher delivers terminal-state payment events to the order
// subsystem. Implemented by the Kafka producer and the SNS publisher.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// MetricRecorder counts domain events. Satisfied by the CloudWatch metrics
// client; nil disables recording.
type MetricRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Confirmation sources, used for logging only: both paths flow through the
// same reconciler entry point.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// Reconciler is the single writer of terminal payment state. It merges the
// webhook-driven and poll-driven views of a payment into one authoritative
// status, using the store's compare-and-set so concurrent attempts resolve
// to exactly one winner. Every transition it issues requires the stored
// status to still be pending; a lost race comes back as a conflict and is
// absorbed as a duplicate or late signal.
type Reconciler struct {
	repo      repository.PaymentRepository
	querier   StatusQuerier
	publisher EventPublisher
	metrics   MetricRecorder
	logger    *zap.Logger
}

func NewReconciler(repo repository.PaymentRepository, querier StatusQuerier, publisher EventPublisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{repo: repo, querier: querier, publisher: publisher, logger: logger}
}

// WithMetrics enables domain metric recording.
func (r *Reconciler) WithMetrics(m MetricRecorder) *Reconciler {
	r.metrics = m
	return r
}

// Confirm transitions a payment pending → confirmed. Whichever caller wins
// the compare-and-set is authoritative; the loser's attempt is a no-op.
// The order fulfillment event is published exactly once, by the winner.
func (r *Reconciler) Confirm(ctx context.Context, payment *models.Payment, txHash string, confirmedAt *time.Time, source string) error {
	when := time.Now().UTC()
	if confirmedAt != nil {
		when = confirmedAt.UTC()
	}

	fields := map[string]interface{}{
		"confirmed_at": when,
		"tx_hash":      txHash,
	}
	err := r.repo.CompareAndSetStatus(ctx, payment.PaymentID, models.StatusPending, models.StatusConfirmed, fields)
	if errors.Is(err, apperrors.ErrConflict) {
		r.logger.Info("Duplicate or late confirmation absorbed",
			zap.String("payment_id", payment.PaymentID.String()),
			zap.String("order_id", payment.OrderID),
			zap.String("source", source),
		)
		r.record(ctx, awspkg.MetricCASConflicts)
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm payment %s: %w", payment.PaymentID, err)
	}
	r.record(ctx, awspkg.MetricConfirmations)

	r.logger.Info("Payment confirmed",
		zap.String("payment_id", payment.PaymentID.String()),
		zap.String("order_id", payment.OrderID),
		zap.String("tx_hash", txHash),
		zap.String("source", source),
	)

	r.publish(ctx, models.PaymentEvent{
		Type:      models.PaymentEventConfirmed,
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID.String(),
		TxHash:    txHash,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Timestamp: when,
	})
	return nil
}

// ConfirmByOrder is the webhook path: resolve the order to its payment and
// confirm it.
func (r *Reconciler) ConfirmByOrder(ctx context.Context, orderID, txHash string) error {
	payment, err := r.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	return r.Confirm(ctx, payment, txHash, nil, SourceWebhook)
}

// Expire transitions a payment pending → expired once its deadline has
// passed. Before declaring expiry it performs one last status query against
// the processor, so a payment that confirmed in the same instant is
// confirmed instead of expired. If the processor is unreachable the payment
// is left pending for the next sweep.
func (r *Reconciler) Expire(ctx context.Context, payment *models.Payment) error {
	if time.Now().Before(payment.ExpiresAt) {
		return nil
	}

	status, err := r.querier.QueryStatus(ctx, payment.PaymentID.String())
	switch {
	case err == nil && status.Status == models.StatusConfirmed:
		r.logger.Info("Last-call check found confirmation, not expiring",
			zap.String("payment_id", payment.PaymentID.String()),
		)
		return r.Confirm(ctx, payment, status.TxHash, status.ConfirmedAt, SourcePoll)
	case err != nil && errors.Is(err, apperrors.ErrUnavailable):
		return fmt.Errorf("last-call check for %s: %w", payment.PaymentID, err)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("last-call check for %s: %w", payment.PaymentID, err)
	}

	return r.markExpired(ctx, payment)
}

// markExpired performs the pending → expired compare-and-set, publishing the
// order callback only on a win.
func (r *Reconciler) markExpired(ctx context.Context, payment *models.Payment) error {
	err := r.repo.CompareAndSetStatus(ctx, payment.PaymentID, models.StatusPending, models.StatusExpired, nil)
	if errors.Is(err, apperrors.ErrConflict) {
		r.logger.Info("Expiry attempt lost race, already resolved",
			zap.String("payment_id", payment.PaymentID.String()),
		)
		r.record(ctx, awspkg.MetricCASConflicts)
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire payment %s: %w", payment.PaymentID, err)
	}
	r.record(ctx, awspkg.MetricExpirations)

	r.logger.Info("Payment expired",
		zap.String("payment_id", payment.PaymentID.String()),
		zap.String("order_id", payment.OrderID),
	)

	r.publish(ctx, models.PaymentEvent{
		Type:      models.PaymentEventExpired,
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID.String(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// Cancel transitions a payment pending → failed on an explicit merchant
// request. Terminal payments reject with a conflict.
func (r *Reconciler) Cancel(ctx context.Context, payment *models.Payment) error {
	err := r.repo.CompareAndSetStatus(ctx, payment.PaymentID, models.StatusPending, models.StatusFailed, nil)
	if err != nil {
		return err
	}

	r.logger.Info("Payment cancelled",
		zap.String("payment_id", payment.PaymentID.String()),
		zap.String("order_id", payment.OrderID),
	)

	r.publish(ctx, models.PaymentEvent{
		Type:      models.PaymentEventFailed,
		OrderID:   payment.OrderID,
		PaymentID: payment.PaymentID.String(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// CheckNow is the manual-check path: query the processor and fold its view
// into local state, then return the authoritative local record. A payment
// the processor reports confirmed is confirmed locally (covers a lost
// webhook); one it reports expired past the deadline is expired locally.
func (r *Reconciler) CheckNow(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.Status.IsTerminal() {
		return payment, nil
	}

	status, err := r.querier.QueryStatus(ctx, payment.PaymentID.String())
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case models.StatusConfirmed:
		if err := r.Confirm(ctx, payment, status.TxHash, status.ConfirmedAt, SourcePoll); err != nil {
			return nil, err
		}
	case models.StatusExpired:
		if err := r.markExpired(ctx, payment); err != nil {
			return nil, err
		}
	}

	return r.repo.GetByPaymentID(ctx, payment.PaymentID)
}

func (r *Reconciler) record(ctx context.Context, metricName string) {
	if r.metrics == nil {
		return
	}
	_ = r.metrics.RecordCount(ctx, metricName, nil)
}

func (r *Reconciler) publish(ctx context.Context, event models.PaymentEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishPaymentEvent(ctx, event); err != nil {
		r.logger.Error("Failed to publish payment event",
			zap.String("event_type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
