package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"

	"go.uber.org/zap"
)

// Dispatcher turns a verified webhook into a state transition. It never
// decides uniqueness itself: every payment.confirmed is forwarded to the
// reconciler, whose compare-and-set absorbs repeated deliveries.
type Dispatcher struct {
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewDispatcher(reconciler *Reconciler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{reconciler: reconciler, logger: logger}
}

// HandleEvent applies a verified (event, data) pair. Unknown event types are
// acknowledged without state change so the processor can add events without
// breaking older receivers.
func (d *Dispatcher) HandleEvent(ctx context.Context, event string, data json.RawMessage) error {
	switch event {
	case models.EventPaymentConfirmed:
		return d.handleConfirmed(ctx, data)
	case models.EventWebhookTest:
		d.logger.Info("Webhook endpoint test received")
		return nil
	default:
		d.logger.Info("Unhandled webhook event type", zap.String("event_type", event))
		return nil
	}
}

func (d *Dispatcher) handleConfirmed(ctx context.Context, data json.RawMessage) error {
	var payload models.ConfirmedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperrors.Wrap(apperrors.ErrMalformed, err)
	}
	if payload.OrderID == "" || payload.Transaction.TxHash == "" || payload.Amount == "" {
		return apperrors.Wrap(apperrors.ErrMalformed,
			fmt.Errorf("payment.confirmed missing order_id, tx_hash or amount"))
	}

	d.logger.Info("Processing payment.confirmed webhook",
		zap.String("order_id", payload.OrderID),
		zap.String("tx_hash", payload.Transaction.TxHash),
		zap.String("amount", payload.Amount),
	)

	return d.reconciler.ConfirmByOrder(ctx, payload.OrderID, payload.Transaction.TxHash)
}
