package service

import (
	"time"

	"trinity/internal/model"
)

// allowedTransitions lists the non-trivial status moves. Anything not here
// (other than staying put) is rejected.
var allowedTransitions = map[string][]string{
	model.InvoiceStatusPending:   {model.InvoiceStatusPaid, model.InvoiceStatusCancelled},
	model.InvoiceStatusPaid:      {model.InvoiceStatusRefunded},
	model.InvoiceStatusCancelled: nil,
	model.InvoiceStatusRefunded:  nil,
}

// ValidStatus reports whether s is a known invoice status.
func ValidStatus(s string) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case model.PaymentCash, model.PaymentCard, model.PaymentPayPal, model.PaymentOther:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is permitted. Same-state is allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return ValidStatus(to)
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyStatus moves inv to status, maintaining paid_at: entering paid stamps
// it (unless already set), leaving paid clears it.
func ApplyStatus(inv *model.Invoice, status string, now time.Time) error {
	if !ValidStatus(status) {
		return fieldError("status", "\""+status+"\" is not a valid choice.")
	}
	if !CanTransition(inv.Status, status) {
		return fieldError("status", "cannot change status from "+inv.Status+" to "+status+".")
	}
	prev := inv.Status
	inv.Status = status
	switch {
	case status == model.InvoiceStatusPaid && inv.PaidAt == nil:
		t := now.UTC()
		inv.PaidAt = &t
	case prev == model.InvoiceStatusPaid && status != model.InvoiceStatusPaid:
		inv.PaidAt = nil
	}
	return nil
}

// InitialStatus decides the status of a newly created invoice. A customer
// paying by card at checkout is settled immediately.
func InitialStatus(staff bool, paymentMethod string) string {
	if !staff && paymentMethod == model.PaymentCard {
		return model.InvoiceStatusPaid
	}
	return model.InvoiceStatusPending
}
