package models

import "encoding/json"

// Webhook event types emitted by the payment processor.
const (
	EventPaymentConfirmed = "payment.confirmed"
	EventWebhookTest      = "webhook.test"
)

// WebhookEvent is the inbound envelope posted by the processor. Delivery is
// at-least-once: the same event may arrive more than once.
type WebhookEvent struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
}

// ConfirmedData is the payload of a payment.confirmed event.
type ConfirmedData struct {
	PaymentID   string             `json:"payment_id"`
	OrderID     string             `json:"order_id"`
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
	ConfirmedAt string             `json:"confirmed_at"`
	Transaction WebhookTransaction `json:"transaction"`
}

// WebhookTransaction carries the on-chain settlement reference.
type WebhookTransaction struct {
	TxHash        string `json:"tx_hash"`
	FromAddress   string `json:"from_address"`
	Amount        string `json:"amount"`
	Confirmations int    `json:"confirmations"`
	Network       string `json:"network"`
}
