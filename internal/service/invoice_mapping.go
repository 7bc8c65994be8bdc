package service

import (
	"time"

	"trinity/internal/dto"
	"trinity/internal/model"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func itemToResponse(it *model.InvoiceItem) dto.InvoiceItemResponse {
	return dto.InvoiceItemResponse{
		ID:           it.ID.String(),
		Invoice:      it.InvoiceID.String(),
		Product:      it.ProductID.String(),
		ProductName:  it.ProductName,
		ProductBrand: it.ProductBrand,
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice.StringFixed(2),
		TotalPrice:   it.TotalPrice.StringFixed(2),
		CreatedAt:    formatTime(it.CreatedAt),
	}
}

func invoiceToResponse(inv *model.Invoice) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:                  inv.ID.String(),
		InvoiceNumber:       inv.InvoiceNumber,
		Customer:            inv.CustomerID.String(),
		Status:              inv.Status,
		PaymentMethod:       inv.PaymentMethod,
		Subtotal:            inv.Subtotal.StringFixed(2),
		TaxRate:             inv.TaxRate.StringFixed(2),
		TaxAmount:           inv.TaxAmount.StringFixed(2),
		TotalAmount:         inv.TotalAmount.StringFixed(2),
		PayPalTransactionID: inv.PayPalTransactionID,
		PayPalPayerEmail:    inv.PayPalPayerEmail,
		Notes:               inv.Notes,
		Items:               make([]dto.InvoiceItemResponse, 0, len(inv.Items)),
		TotalItems:          inv.TotalItems(),
		CreatedAt:           formatTime(inv.CreatedAt),
		UpdatedAt:           formatTime(inv.UpdatedAt),
		PaidAt:              formatTimePtr(inv.PaidAt),
	}
	if inv.Customer != nil {
		resp.CustomerDetails = &dto.CustomerSummary{
			ID:       inv.Customer.ID.String(),
			FullName: inv.Customer.FullName(),
			Email:    inv.Customer.Email,
		}
	}
	for i := range inv.Items {
		resp.Items = append(resp.Items, itemToResponse(&inv.Items[i]))
	}
	return resp
}

func movementsToResponse(movs []model.StockMovement) []dto.StockMovementResponse {
	out := make([]dto.StockMovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, dto.StockMovementResponse{
			ID:          m.ID.String(),
			Product:     m.ProductID.String(),
			Kind:        m.Kind,
			Quantity:    m.Quantity,
			StockBefore: m.StockBefore,
			StockAfter:  m.StockAfter,
			CreatedAt:   formatTime(m.CreatedAt),
		})
	}
	return out
}

func invoiceToListItem(inv *model.Invoice) dto.InvoiceListItem {
	row := dto.InvoiceListItem{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		Customer:      inv.CustomerID.String(),
		Status:        inv.Status,
		PaymentMethod: inv.PaymentMethod,
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		TotalItems:    inv.TotalItems(),
		CreatedAt:     formatTime(inv.CreatedAt),
		PaidAt:        formatTimePtr(inv.PaidAt),
	}
	if inv.Customer != nil {
		row.CustomerName = inv.Customer.FullName()
	}
	return row
}
