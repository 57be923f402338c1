package services

import (
	"context"
	"time"

	"github.com/sukruuzun/PayKript/repository"

	"go.uber.org/zap"
)

const expiryBatchSize = 100

// ExpiryWorker periodically sweeps pending payments whose deadline has
// passed and hands each one to the reconciler, which performs the last-call
// status check before declaring expiry. A client that closed its tab still
// gets its payment resolved server-side.
type ExpiryWorker struct {
	repo       repository.PaymentRepository
	reconciler *Reconciler
	interval   time.Duration
	logger     *zap.Logger
}

func NewExpiryWorker(repo repository.PaymentRepository, reconciler *Reconciler, interval time.Duration, logger *zap.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, reconciler: reconciler, interval: interval, logger: logger}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.logger.Info("Starting expiry worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	due, err := w.repo.ListExpiredPending(ctx, time.Now(), expiryBatchSize)
	if err != nil {
		w.logger.Error("Failed to list expired pending payments", zap.Error(err))
		return
	}

	for i := range due {
		payment := due[i]
		if err := w.reconciler.Expire(ctx, &payment); err != nil {
			// Left pending; the next sweep retries.
			w.logger.Warn("Expiry deferred",
				zap.String("payment_id", payment.PaymentID.String()),
				zap.Error(err),
			)
		}
	}
}
