package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"
	"github.com/sukruuzun/PayKript/repository"
	"github.com/sukruuzun/PayKript/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentController struct {
	Repo       repository.PaymentRepository
	Reconciler *services.Reconciler
	TTL        time.Duration
	Logger     *zap.Logger
}

func NewPaymentController(repo repository.PaymentRepository, reconciler *services.Reconciler, ttl time.Duration, logger *zap.Logger) *PaymentController {
	return &PaymentController{Repo: repo, Reconciler: reconciler, TTL: ttl, Logger: logger}
}

type statusResponse struct {
	PaymentID        string               `json:"payment_id"`
	OrderID          string               `json:"order_id"`
	Status           models.PaymentStatus `json:"status"`
	Address          string               `json:"address"`
	Amount           string               `json:"amount"`
	Currency         string               `json:"currency"`
	ExpiresAt        time.Time            `json:"expires_at"`
	ConfirmedAt      *time.Time           `json:"confirmed_at,omitempty"`
	TxHash           *string              `json:"tx_hash,omitempty"`
	RemainingSeconds int                  `json:"remaining_seconds"`
}

func toStatusResponse(p *models.Payment) statusResponse {
	remaining := 0
	if p.Status == models.StatusPending {
		if r := int(time.Until(p.ExpiresAt) / time.Second); r > 0 {
			remaining = r
		}
	}
	return statusResponse{
		PaymentID:        p.PaymentID.String(),
		OrderID:          p.OrderID,
		Status:           p.Status,
		Address:          p.Address,
		Amount:           p.Amount,
		Currency:         p.Currency,
		ExpiresAt:        p.ExpiresAt,
		ConfirmedAt:      p.ConfirmedAt,
		TxHash:           p.TxHash,
		RemainingSeconds: remaining,
	}
}

// CreatePayment registers a pending payment for an order. Called by the
// order subsystem at checkout; the deadline is server-issued here.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req struct {
		OrderID  string `json:"order_id" binding:"required"`
		Address  string `json:"address" binding:"required"`
		Amount   string `json:"amount" binding:"required"`
		Currency string `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
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
		ExpiresAt: time.Now().Add(pc.TTL),
	}
	if err := pc.Repo.Create(c.Request.Context(), payment); err != nil {
		pc.Logger.Error("Failed to create payment", zap.String("order_id", req.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save payment"})
		return
	}

	pc.Logger.Info("Payment created",
		zap.String("payment_id", payment.PaymentID.String()),
		zap.String("order_id", payment.OrderID),
	)
	c.JSON(http.StatusCreated, toStatusResponse(payment))
}

// GetStatus returns the local authoritative view of one payment, including
// the remaining seconds pollers render.
func (pc *PaymentController) GetStatus(c *gin.Context) {
	payment, ok := pc.lookupPayment(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(payment))
}

// GetByOrder resolves an order to its most recent payment.
func (pc *PaymentController) GetByOrder(c *gin.Context) {
	payment, err := pc.Repo.GetByOrderID(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		pc.Logger.Error("Failed to look up payment by order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(payment))
}

// ManualCheck queries the remote processor immediately and folds the result
// into local state. This is the tie-breaker for a lost webhook: the
// processor's ledger has the truth.
func (pc *PaymentController) ManualCheck(c *gin.Context) {
	payment, ok := pc.lookupPayment(c)
	if !ok {
		return
	}

	updated, err := pc.Reconciler.CheckNow(c.Request.Context(), payment)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment processor is temporarily unreachable, try again shortly"})
			return
		}
		pc.Logger.Error("Manual check failed",
			zap.String("payment_id", payment.PaymentID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Check failed"})
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(updated))
}

// Cancel marks a pending payment failed on merchant request. Terminal
// payments cannot be cancelled.
func (pc *PaymentController) Cancel(c *gin.Context) {
	payment, ok := pc.lookupPayment(c)
	if !ok {
		return
	}

	if err := pc.Reconciler.Cancel(c.Request.Context(), payment); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Payment already resolved"})
			return
		}
		pc.Logger.Error("Cancel failed",
			zap.String("payment_id", payment.PaymentID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cancel failed"})
		return
	}

	updated, err := pc.Repo.GetByPaymentID(c.Request.Context(), payment.PaymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cancel failed"})
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(updated))
}

func (pc *PaymentController) lookupPayment(c *gin.Context) (*models.Payment, bool) {
	paymentID, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
		return nil, false
	}

	payment, err := pc.Repo.GetByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return nil, false
		}
		pc.Logger.Error("Failed to load payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return nil, false
	}
	return payment, true
}
