package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// InvoiceFilter is bound from the query string of GET /v1/invoices/.
type InvoiceFilter struct {
	Status        string `form:"status"         validate:"omitempty,oneof=pending paid cancelled refunded"`
	PaymentMethod string `form:"payment_method" validate:"omitempty,oneof=cash card paypal other"`
	Customer      string `form:"customer"       validate:"omitempty,uuid"`
	Search        string `form:"search"         validate:"max=100"`
	Ordering      string `form:"ordering"       validate:"omitempty,oneof=created_at -created_at total_amount -total_amount"`
	Page          int    `form:"page,default=1"   validate:"min=1"`
	Limit         int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// InvoiceItemFilter is bound from the query string of GET /v1/invoice-items/.
type InvoiceItemFilter struct {
	Invoice string `form:"invoice"          validate:"omitempty,uuid"`
	Page    int    `form:"page,default=1"   validate:"min=1"`
	Limit   int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type InvoiceItemRequest struct {
	Product  string `json:"product"  validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	// UnitPrice defaults to the catalog price when omitted.
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type CreateInvoiceRequest struct {
	// Customer is required for staff; customers are resolved from the token.
	Customer      *string          `json:"customer"       validate:"omitempty,uuid"`
	InvoiceNumber *string          `json:"invoice_number" validate:"omitempty,min=1,max=50"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,oneof=cash card paypal other"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	Notes         string           `json:"notes"`

	PayPalTransactionID string `json:"paypal_transaction_id" validate:"max=100"`
	PayPalPayerEmail    string `json:"paypal_payer_email"    validate:"omitempty,email"`

	Items []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateInvoiceRequest is the PUT body: every mutable field is required.
type UpdateInvoiceRequest struct {
	Status        string           `json:"status"         validate:"required,oneof=pending paid cancelled refunded"`
	PaymentMethod string           `json:"payment_method" validate:"required,oneof=cash card paypal other"`
	TaxRate       *decimal.Decimal `json:"tax_rate"       validate:"required"`
	Notes         *string          `json:"notes"          validate:"required"`

	PayPalTransactionID string `json:"paypal_transaction_id" validate:"max=100"`
	PayPalPayerEmail    string `json:"paypal_payer_email"    validate:"omitempty,email"`
}

// PatchInvoiceRequest is the PATCH body: nil fields are left unchanged.
type PatchInvoiceRequest struct {
	Status              *string          `json:"status"                validate:"omitempty,oneof=pending paid cancelled refunded"`
	PaymentMethod       *string          `json:"payment_method"        validate:"omitempty,oneof=cash card paypal other"`
	TaxRate             *decimal.Decimal `json:"tax_rate"`
	Notes               *string          `json:"notes"`
	PayPalTransactionID *string          `json:"paypal_transaction_id" validate:"omitempty,max=100"`
	PayPalPayerEmail    *string          `json:"paypal_payer_email"    validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────
// Money is rendered with exactly two decimals.

type InvoiceItemResponse struct {
	ID           string `json:"id"`
	Invoice      string `json:"invoice"`
	Product      string `json:"product"`
	ProductName  string `json:"product_name"`
	ProductBrand string `json:"product_brand"`
	Quantity     int    `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	TotalPrice   string `json:"total_price"`
	CreatedAt    string `json:"created_at"`
}

type CustomerSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type InvoiceResponse struct {
	ID                  string                `json:"id"`
	InvoiceNumber       string                `json:"invoice_number"`
	Customer            string                `json:"customer"`
	CustomerDetails     *CustomerSummary      `json:"customer_details,omitempty"`
	Status              string                `json:"status"`
	PaymentMethod       string                `json:"payment_method"`
	Subtotal            string                `json:"subtotal"`
	TaxRate             string                `json:"tax_rate"`
	TaxAmount           string                `json:"tax_amount"`
	TotalAmount         string                `json:"total_amount"`
	PayPalTransactionID string                `json:"paypal_transaction_id"`
	PayPalPayerEmail    string                `json:"paypal_payer_email"`
	Notes               string                `json:"notes"`
	Items               []InvoiceItemResponse `json:"items"`
	TotalItems          int                   `json:"total_items"`
	CreatedAt           string                `json:"created_at"`
	UpdatedAt           string                `json:"updated_at"`
	PaidAt              *string               `json:"paid_at"`

	// StockMovements is only filled for staff on the detail endpoint.
	StockMovements []StockMovementResponse `json:"stock_movements,omitempty"`
}

// StockMovementResponse is one stock change recorded against an invoice.
type StockMovementResponse struct {
	ID          string `json:"id"`
	Product     string `json:"product"`
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	StockBefore int    `json:"stock_before"`
	StockAfter  int    `json:"stock_after"`
	CreatedAt   string `json:"created_at"`
}

// InvoiceListItem is the lighter row returned by GET /v1/invoices/.
type InvoiceListItem struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"invoice_number"`
	Customer      string  `json:"customer"`
	CustomerName  string  `json:"customer_name"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
	TotalAmount   string  `json:"total_amount"`
	TotalItems    int     `json:"total_items"`
	CreatedAt     string  `json:"created_at"`
	PaidAt        *string `json:"paid_at"`
}

type InvoiceListResponse struct {
	Data  []InvoiceListItem `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type InvoiceItemListResponse struct {
	Data  []InvoiceItemResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
