package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sukruuzun/PayKript/apperrors"
	"github.com/sukruuzun/PayKript/models"
	awspkg "github.com/sukruuzun/PayKript/pkg/aws"
	"github.com/sukruuzun/PayKript/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries the processor's HMAC over the raw request body.
const SignatureHeader = "X-PayKript-Signature"

type WebhookController struct {
	Secret     string
	Dispatcher *services.Dispatcher
	Metrics    *awspkg.MetricsClient
	Logger     *zap.Logger
}

func NewWebhookController(secret string, dispatcher *services.Dispatcher, logger *zap.Logger) *WebhookController {
	return &WebhookController{Secret: secret, Dispatcher: dispatcher, Logger: logger}
}

func (wc *WebhookController) record(c *gin.Context, metricName string) {
	if wc.Metrics == nil {
		return
	}
	_ = wc.Metrics.RecordCount(c.Request.Context(), metricName, nil)
}

// ProcessorWebhook receives processor callbacks. The body is read raw and
// verified byte-for-byte before any parsing; a body that fails verification
// is dropped without touching state. Absorbed duplicates still respond
// success so the processor stops retrying.
func (wc *WebhookController) ProcessorWebhook(c *gin.Context) {
	wc.record(c, awspkg.MetricWebhooksReceived)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if !services.VerifyWebhookSignature(wc.Secret, body, signature) {
		wc.Logger.Warn("Webhook signature verification failed",
			zap.String("ip", c.ClientIP()),
		)
		wc.record(c, awspkg.MetricWebhooksRejected)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Event == "" {
		wc.Logger.Warn("Malformed webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook data"})
		return
	}

	wc.Logger.Info("Processing webhook",
		zap.String("event_type", event.Event),
	)

	if err := wc.Dispatcher.HandleEvent(c.Request.Context(), event.Event, event.Data); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMalformed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook data"})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		default:
			wc.Logger.Error("Webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
