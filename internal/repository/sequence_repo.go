package repository

import (
	"context"

	"gorm.io/gorm"
)

// InvoiceSequenceRepository hands out per-day invoice counters.
type InvoiceSequenceRepository interface {
	// NextTx atomically increments the counter for day (YYYYMMDD) and returns
	// the new value, starting at 1. The row stays locked until tx ends.
	NextTx(ctx context.Context, tx *gorm.DB, day string) (int, error)
}

type invoiceSequenceRepo struct{}

func NewInvoiceSequenceRepository() InvoiceSequenceRepository { return &invoiceSequenceRepo{} }

func (r *invoiceSequenceRepo) NextTx(ctx context.Context, tx *gorm.DB, day string) (int, error) {
	var next int
	err := tx.WithContext(ctx).Raw(`
		INSERT INTO invoice_sequences (day, last_value, updated_at)
		VALUES (?, 1, NOW())
		ON CONFLICT (day) DO UPDATE
		   SET last_value = invoice_sequences.last_value + 1,
		       updated_at = NOW()
		RETURNING last_value`, day).Scan(&next).Error
	return next, err
}
