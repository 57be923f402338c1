package models

import "time"

// Outbound order-callback event types.
const (
	PaymentEventConfirmed = "payment_confirmed"
	PaymentEventExpired   = "payment_expired"
	PaymentEventFailed    = "payment_failed"
)

// PaymentEvent is published to the order subsystem when a payment reaches a
// terminal state. The reconciler publishes it exactly once per payment.
type PaymentEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentRequest is consumed from the order subsystem to create a pending
// payment asynchronously (the Kafka variant of POST /api/v1/payments).
type PaymentRequest struct {
	OrderID  string `json:"order_id"`
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}
