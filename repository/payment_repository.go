package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRepository is the payment state store. CompareAndSetStatus is the
// sole mutation primitive after creation: every transition is conditional on
// the stored status still matching the caller's expectation.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	CompareAndSetStatus(ctx context.Context, paymentID uuid.UUID, expected, next models.PaymentStatus, fields map[string]interface{}) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Payment, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByOrderID resolves an order to its most recent payment. An order may be
// re-attempted with a new payment_id; older attempts are terminal by then, so
// at most one non-terminal payment exists per order.
func (r *gormPaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompareAndSetStatus applies a single conditional UPDATE guarded by the
// expected status. Zero rows affected means the race was lost (ErrConflict)
// or the payment does not exist (ErrNotFound).
func (r *gormPaymentRepo) CompareAndSetStatus(ctx context.Context, paymentID uuid.UUID, expected, next models.PaymentStatus, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("payment_id = ? AND status = ?", paymentID, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.Payment{}).
			Where("payment_id = ?", paymentID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.ErrNotFound
		}
		return apperrors.ErrConflict
	}
	return nil
}

func (r *gormPaymentRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
