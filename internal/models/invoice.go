package models

import (
	"time"

	"gorm.io/gorm"
)

// Invoice is one booking's billing record. InvoiceNo is the correlation
// key webhooks use to find it; PaidAt is set iff PaymentStatus is paid.
type Invoice struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	InvoiceNo     string         `gorm:"uniqueIndex;not null" json:"invoice_no"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `gorm:"index" json:"customer_email"`
	CustomerPhone string         `json:"customer_phone"`
	Route         string         `json:"route"` // e.g. "JFK-LHR round trip"
	DepartureDate *time.Time     `json:"departure_date"`
	ReturnDate    *time.Time     `json:"return_date"`
	Passengers    int            `gorm:"not null;default:1" json:"passengers"`
	Amount        Money          `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency      string         `gorm:"not null" json:"currency"`
	PaymentStatus string         `gorm:"index;not null" json:"payment_status"`
	PaymentMethod string         `json:"payment_method"`
	PaidAt        *time.Time     `gorm:"index" json:"paid_at"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the table name.
func (Invoice) TableName() string {
	return "invoices"
}
