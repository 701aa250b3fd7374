package models

import (
	"time"
)

// Payment is one immutable ledger entry per gateway transaction. The
// unique index on TransactionID is what makes duplicate webhook
// delivery and the orchestrator/reconciler race safe: the second
// writer's insert is a no-op, never a second row.
type Payment struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	InvoiceID       uint      `gorm:"index;not null" json:"invoice_id"`
	TransactionID   string    `gorm:"uniqueIndex;not null" json:"transaction_id"`
	Provider        string    `gorm:"not null" json:"provider"` // cardgate / paylink
	Amount          Money     `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency        string    `gorm:"not null" json:"currency"`
	Status          string    `gorm:"index;not null" json:"status"` // always succeeded; declines never reach the ledger
	PaymentMethod   string    `json:"payment_method"`
	CustomerEmail   string    `json:"customer_email"`
	ProviderPayload JSON      `gorm:"type:json" json:"provider_payload"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName sets the table name.
func (Payment) TableName() string {
	return "payments"
}
