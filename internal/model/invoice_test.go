package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/callbacks"
)

func TestInvoiceItem_IsSaveHook(t *testing.T) {
	var it any = &InvoiceItem{}
	_, ok := it.(callbacks.BeforeSaveInterface)
	assert.True(t, ok, "gorm must run BeforeSave for invoice items")
}

func TestInvoiceItem_BeforeSaveRecomputesTotal(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		qty      int
		stored   string
		expected string
	}{
		{"forged total", "2.50", 2, "999.99", "5.00"},
		{"stale after quantity change", "3.10", 7, "6.20", "21.70"},
		{"zero total rewritten", "0.99", 3, "0", "2.97"},
		{"zero quantity", "4.00", 0, "4.00", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := &InvoiceItem{
				Quantity:   tt.qty,
				UnitPrice:  decimal.RequireFromString(tt.unit),
				TotalPrice: decimal.RequireFromString(tt.stored),
			}
			require.NoError(t, it.BeforeSave(nil))
			assert.Equal(t, tt.expected, it.TotalPrice.StringFixed(2))
		})
	}
}

func TestInvoiceItem_QuantityChangeBetweenSaves(t *testing.T) {
	it := &InvoiceItem{Quantity: 1, UnitPrice: decimal.RequireFromString("12.00")}
	require.NoError(t, it.BeforeSave(nil))
	assert.Equal(t, "12.00", it.TotalPrice.StringFixed(2))

	it.Quantity = 4
	it.TotalPrice = decimal.RequireFromString("12.00")
	require.NoError(t, it.BeforeSave(nil))
	assert.Equal(t, "48.00", it.TotalPrice.StringFixed(2))
}
