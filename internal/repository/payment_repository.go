package repository

import (
	"errors"
	"strings"

	"github.com/farewire/farewire/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository is the ledger data access interface.
type PaymentRepository interface {
	CreateIfAbsent(payment *models.Payment) (bool, error)
	GetByTransactionID(transactionID string) (*models.Payment, error)
	ListByInvoiceID(invoiceID uint) ([]models.Payment, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository is the GORM implementation.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates the ledger repository.
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// CreateIfAbsent inserts a ledger entry unless one already exists for
// the same transaction id. The ON CONFLICT clause rides on the unique
// index, so two writers in different processes cannot both insert.
// Returns whether a row was actually written.
func (r *GormPaymentRepository) CreateIfAbsent(payment *models.Payment) (bool, error) {
	if payment == nil {
		return false, errors.New("payment is nil")
	}
	if strings.TrimSpace(payment.TransactionID) == "" {
		return false, errors.New("transaction id is empty")
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(payment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByTransactionID fetches the ledger entry for a gateway transaction.
func (r *GormPaymentRepository) GetByTransactionID(transactionID string) (*models.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("transaction_id = ?", transactionID).Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// ListByInvoiceID fetches all ledger entries for one invoice.
func (r *GormPaymentRepository) ListByInvoiceID(invoiceID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("invoice_id = ?", invoiceID).Order("id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
