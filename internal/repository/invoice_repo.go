package repository

import (
	"context"

	"trinity/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Orderings accepted by List; anything else falls back to newest first.
var invoiceOrderings = map[string]string{
	"created_at":    "invoices.created_at ASC",
	"-created_at":   "invoices.created_at DESC",
	"total_amount":  "invoices.total_amount ASC",
	"-total_amount": "invoices.total_amount DESC",
}

// InvoiceFilter narrows List. CustomerID set means results are restricted
// to that customer (either by caller scope or by an explicit filter).
type InvoiceFilter struct {
	CustomerID    *uuid.UUID
	Status        string
	PaymentMethod string
	Search        string
	Ordering      string
	Page          int
	Limit         int
}

// InvoiceItemFilter narrows ListItems.
type InvoiceItemFilter struct {
	CustomerID *uuid.UUID
	InvoiceID  *uuid.UUID
	Page       int
	Limit      int
}

// Columns an invoice update may write. Customer, number, creation time and
// subtotal are fixed once created.
var invoiceMutableColumns = []string{
	"status", "payment_method", "tax_rate", "tax_amount", "total_amount",
	"paypal_transaction_id", "paypal_payer_email", "notes", "paid_at", "updated_at",
}

type InvoiceRepository interface {
	// Create inserts the invoice and its items inside tx.
	Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	NumberExistsTx(ctx context.Context, tx *gorm.DB, number string) (bool, error)

	// FindByID loads the invoice with customer and items. A non-nil
	// customerID hides invoices owned by anyone else (ErrRecordNotFound).
	FindByID(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	// Update writes the mutable columns only if the stored status still
	// equals expectedStatus; otherwise it returns ErrStaleInvoice.
	Update(ctx context.Context, inv *model.Invoice, expectedStatus string) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, filter InvoiceItemFilter) ([]model.InvoiceItem, int64, error)
	FindItem(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.InvoiceItem, error)

	DB() *gorm.DB
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) DB() *gorm.DB { return r.db }

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	return tx.WithContext(ctx).Omit("Customer", "Items.Product").Create(inv).Error
}

func (r *invoiceRepo) NumberExistsTx(ctx context.Context, tx *gorm.DB, number string) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&model.Invoice{}).Where("invoice_number = ?", number).Count(&n).Error
	return n > 0, err
}

func (r *invoiceRepo) FindByID(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	q := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_items.created_at ASC, invoice_items.id ASC") }).
		Where("invoices.id = ?", id)
	if customerID != nil {
		q = q.Where("invoices.customer_id = ?", *customerID)
	}
	err := q.First(&inv).Error
	return &inv, err
}

func (r *invoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Invoice{})

	if filter.CustomerID != nil {
		q = q.Where("invoices.customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("invoices.status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("invoices.payment_method = ?", filter.PaymentMethod)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Joins("JOIN customers ON customers.id = invoices.customer_id").
			Where("invoices.invoice_number ILIKE ? OR customers.first_name ILIKE ? OR customers.last_name ILIKE ?", like, like, like)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := invoiceOrderings[filter.Ordering]
	if !ok {
		order = invoiceOrderings["-created_at"]
	}
	page, limit := normalizePage(filter.Page, filter.Limit)

	err := q.Preload("Customer").Preload("Items").
		Order(order).Order("invoices.id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepo) Update(ctx context.Context, inv *model.Invoice, expectedStatus string) error {
	db := r.db.WithContext(ctx)
	res := db.Model(inv).
		Where("status = ?", expectedStatus).
		Select(invoiceMutableColumns).
		Omit(clause.Associations).
		Updates(inv)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := db.Model(&model.Invoice{}).Where("id = ?", inv.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleInvoice
}

func (r *invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Invoice{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *invoiceRepo) ListItems(ctx context.Context, filter InvoiceItemFilter) ([]model.InvoiceItem, int64, error) {
	var items []model.InvoiceItem
	var total int64

	q := r.db.WithContext(ctx).Model(&model.InvoiceItem{})
	if filter.CustomerID != nil {
		q = q.Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
			Where("invoices.customer_id = ?", *filter.CustomerID)
	}
	if filter.InvoiceID != nil {
		q = q.Where("invoice_items.invoice_id = ?", *filter.InvoiceID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	err := q.Order("invoice_items.created_at DESC").Order("invoice_items.id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&items).Error
	return items, total, err
}

func (r *invoiceRepo) FindItem(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.InvoiceItem, error) {
	var it model.InvoiceItem
	q := r.db.WithContext(ctx).Model(&model.InvoiceItem{}).Where("invoice_items.id = ?", id)
	if customerID != nil {
		q = q.Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
			Where("invoices.customer_id = ?", *customerID)
	}
	err := q.First(&it).Error
	return &it, err
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
