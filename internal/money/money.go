// Package money holds the fixed-point arithmetic used for invoice amounts.
// Every amount is a decimal.Decimal; binary floats never touch money.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places stored for prices, totals and rates.
const Scale int32 = 2

var (
	// DefaultTaxRate is applied when the caller does not send a tax_rate.
	DefaultTaxRate = decimal.RequireFromString("20.00")
	// MaxTaxRate is the largest value a numeric(5,2) column can hold.
	MaxTaxRate = decimal.RequireFromString("999.99")
	// MinUnitPrice is the smallest accepted line price.
	MinUnitPrice = decimal.RequireFromString("0.01")
	// MaxAmount is the largest value a numeric(10,2) column can hold.
	MaxAmount = decimal.RequireFromString("99999999.99")

	hundred = decimal.NewFromInt(100)
)

// Line is one priced quantity of an invoice.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are the three stored amounts of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Round rounds half-up to Scale places. Amounts are never negative, so
// shopspring's half-away-from-zero rounding is half-up here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// LineTotal returns unit_price × quantity. The product of a 2-place price and
// an integer is exact, no rounding happens.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// TaxAmount returns round(subtotal × rate / 100, 2).
func TaxAmount(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(rate).Div(hundred))
}

// ComputeTotals sums the lines and applies the flat tax rate.
func ComputeTotals(lines []Line, rate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	return FromSubtotal(subtotal, rate)
}

// FromSubtotal derives tax and total from an already known subtotal.
func FromSubtotal(subtotal, rate decimal.Decimal) Totals {
	tax := TaxAmount(subtotal, rate)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

// HasMaxScale reports whether d carries at most places fractional digits.
func HasMaxScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// ValidTaxRate reports whether rate fits numeric(5,2) and is not negative.
func ValidTaxRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(MaxTaxRate) && HasMaxScale(rate, Scale)
}

// ValidUnitPrice reports whether price is ≥ 0.01 with at most two decimals.
func ValidUnitPrice(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(MinUnitPrice) && HasMaxScale(price, Scale)
}

// FitsColumn reports whether every amount fits numeric(10,2).
func (t Totals) FitsColumn() bool {
	return t.Total.LessThanOrEqual(MaxAmount)
}
