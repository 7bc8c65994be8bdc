package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice statuses.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusRefunded  = "refunded"
)

// Payment methods.
const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentPayPal = "paypal"
	PaymentOther  = "other"
)

// Invoice is a billing record for one customer.
// Subtotal, TaxAmount and TotalAmount are stored at creation (and on tax
// rate edits) so later catalog or rate changes never alter history.
type Invoice struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_invoices_customer_created,priority:1"`
	InvoiceNumber       string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	Status              string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod       string          `gorm:"type:varchar(20);not null;default:'cash'"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(5,2);not null;default:20.00"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PayPalTransactionID string          `gorm:"column:paypal_transaction_id;type:varchar(100)"`
	PayPalPayerEmail    string          `gorm:"column:paypal_payer_email"`
	Notes               string
	CreatedAt           time.Time `gorm:"index:idx_invoices_customer_created,priority:2"`
	UpdatedAt           time.Time
	PaidAt              *time.Time

	Customer *Customer    `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT"`
	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TotalItems is the number of units across all lines.
func (i *Invoice) TotalItems() int {
	n := 0
	for _, it := range i.Items {
		n += it.Quantity
	}
	return n
}

// InvoiceItem is one line with a point-in-time snapshot of the product.
type InvoiceItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity     int             `gorm:"not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ProductName  string          `gorm:"type:varchar(255);not null"`
	ProductBrand string          `gorm:"type:varchar(100)"`
	CreatedAt    time.Time

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

// ComputeTotalPrice sets TotalPrice from UnitPrice and Quantity.
func (it *InvoiceItem) ComputeTotalPrice() {
	it.TotalPrice = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// BeforeSave keeps total_price derived on every write.
func (it *InvoiceItem) BeforeSave(_ *gorm.DB) error {
	it.ComputeTotalPrice()
	return nil
}
