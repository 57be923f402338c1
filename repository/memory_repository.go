package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"

	"github.com/google/uuid"
)

// MemoryPaymentRepo is an in-memory payment store for tests and single-node
// local runs (DB_DRIVER=memory). Safe for concurrent use; the status check
// and update inside CompareAndSetStatus happen under one lock, giving the
// same linearizable transition semantics as the SQL implementation.
type MemoryPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
}

func NewMemoryPaymentRepo() *MemoryPaymentRepo {
	return &MemoryPaymentRepo{payments: make(map[uuid.UUID]*models.Payment)}
}

func (r *MemoryPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now

	cp := *payment
	r.payments[payment.PaymentID] = &cp
	return nil
}

func (r *MemoryPaymentRepo) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *models.Payment
	for _, p := range r.payments {
		if p.OrderID != orderID {
			continue
		}
		if newest == nil || p.CreatedAt.After(newest.CreatedAt) {
			newest = p
		}
	}
	if newest == nil {
		return nil, apperrors.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (r *MemoryPaymentRepo) CompareAndSetStatus(ctx context.Context, paymentID uuid.UUID, expected, next models.PaymentStatus, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if p.Status != expected {
		return apperrors.ErrConflict
	}

	p.Status = next
	p.UpdatedAt = time.Now()
	for k, v := range fields {
		switch k {
		case "confirmed_at":
			if t, ok := v.(time.Time); ok {
				p.ConfirmedAt = &t
			}
		case "tx_hash":
			if s, ok := v.(string); ok {
				p.TxHash = &s
			}
		}
	}
	return nil
}

func (r *MemoryPaymentRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []models.Payment
	for _, p := range r.payments {
		if p.Status == models.StatusPending && !p.ExpiresAt.After(now) {
			due = append(due, *p)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

var _ PaymentRepository = (*MemoryPaymentRepo)(nil)
