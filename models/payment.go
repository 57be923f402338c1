package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusExpired   PaymentStatus = "expired"
	StatusFailed    PaymentStatus = "failed"
)

// terminalStatuses are final: once reached, a payment never changes again.
var terminalStatuses = map[PaymentStatus]bool{
	StatusConfirmed: true,
	StatusExpired:   true,
	StatusFailed:    true,
}

// IsTerminal reports whether s is a final status.
func (s PaymentStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// Payment is one attempt to settle an order via an on-chain USDT transfer.
// Status starts at pending and moves exactly once into confirmed, expired or
// failed; ConfirmedAt is set if and only if the payment confirmed.
type Payment struct {
	PaymentID   uuid.UUID     `gorm:"type:uuid;primaryKey" json:"payment_id"`
	OrderID     string        `gorm:"type:varchar(64);index;not null" json:"order_id"`
	Address     string        `gorm:"type:varchar(128);not null" json:"address"`
	Amount      string        `gorm:"type:numeric(20,6);not null" json:"amount"`
	Currency    string        `gorm:"type:varchar(10);not null" json:"currency"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ExpiresAt   time.Time     `gorm:"not null" json:"expires_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	TxHash      *string       `gorm:"type:varchar(128)" json:"tx_hash,omitempty"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}
