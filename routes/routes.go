package routes

import (
	"net/http"
	"time"

	"github.com/sukruuzun/PayKript/controllers"
	"github.com/sukruuzun/PayKript/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RegisterRoutes wires the HTTP surface. The webhook route stays outside the
// API-key group: its HMAC signature is its authentication.
func RegisterRoutes(r *gin.Engine, pc *controllers.PaymentController, wc *controllers.WebhookController, merchantAPIKey string) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	api.POST("/webhooks/processor", wc.ProcessorWebhook)

	checkLimiter := middleware.NewKeyedRateLimiter(rate.Every(3*time.Second), 1, 10*time.Minute)

	payments := api.Group("/payments")
	payments.Use(middleware.APIKeyAuth(merchantAPIKey))
	payments.POST("", pc.CreatePayment)
	payments.GET("/:payment_id/status", pc.GetStatus)
	payments.GET("/by-order/:order_id", pc.GetByOrder)
	payments.POST("/:payment_id/check", middleware.ManualCheckLimit(checkLimiter, "payment_id"), pc.ManualCheck)
	payments.POST("/:payment_id/cancel", pc.Cancel)
}
