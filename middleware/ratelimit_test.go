package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func checkRouter(rl *KeyedRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/payments/:payment_id/check", ManualCheckLimit(rl, "payment_id"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func postCheck(r *gin.Engine, paymentID string) int {
	req := httptest.NewRequest(http.MethodPost, "/payments/"+paymentID+"/check", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestManualCheckLimit_SpacingEnforcedPerKey(t *testing.T) {
	rl := NewKeyedRateLimiter(rate.Every(time.Hour), 1, time.Hour)
	r := checkRouter(rl)

	assert.Equal(t, http.StatusOK, postCheck(r, "pay-1"))
	assert.Equal(t, http.StatusTooManyRequests, postCheck(r, "pay-1"), "second check inside the window")

	// A different payment has its own budget.
	assert.Equal(t, http.StatusOK, postCheck(r, "pay-2"))
}

func TestManualCheckLimit_RecoversAfterWindow(t *testing.T) {
	rl := NewKeyedRateLimiter(rate.Every(30*time.Millisecond), 1, time.Hour)
	r := checkRouter(rl)

	assert.Equal(t, http.StatusOK, postCheck(r, "pay-1"))
	assert.Equal(t, http.StatusTooManyRequests, postCheck(r, "pay-1"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, http.StatusOK, postCheck(r, "pay-1"))
}
