package repository

import (
	"errors"
	"strings"

	"github.com/farewire/farewire/internal/models"

	"gorm.io/gorm"
)

// InvoiceRepository is the invoice data access interface.
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	Update(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByInvoiceNo(invoiceNo string) (*models.Invoice, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormInvoiceRepository
}

// GormInvoiceRepository is the GORM implementation.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates the invoice repository.
func NewInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	if tx == nil {
		return r
	}
	return &GormInvoiceRepository{db: tx}
}

// Create inserts an invoice.
func (r *GormInvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// Update saves an invoice.
func (r *GormInvoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Save(invoice).Error
}

// GetByID fetches an invoice by primary key.
func (r *GormInvoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.First(&invoice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// GetByInvoiceNo fetches an invoice by its human-facing number.
func (r *GormInvoiceRepository) GetByInvoiceNo(invoiceNo string) (*models.Invoice, error) {
	invoiceNo = strings.TrimSpace(invoiceNo)
	if invoiceNo == "" {
		return nil, nil
	}
	var invoice models.Invoice
	result := r.db.Where("invoice_no = ?", invoiceNo).Limit(1).Find(&invoice)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &invoice, nil
}

// UpdateStatus applies a status change plus extra column updates in one
// statement.
func (r *GormInvoiceRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["payment_status"] = status
	return r.db.Model(&models.Invoice{}).Where("id = ?", id).Updates(updates).Error
}
