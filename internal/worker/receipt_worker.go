package worker

// receipt_worker.go renders the PDF receipt for a committed invoice and,
// when the customer has an e-mail address, queues delivery.

import (
	"context"
	"encoding/json"
	"fmt"

	"trinity/internal/infra"
	"trinity/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailEnqueuer is the part of Dispatcher the receipt worker needs.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

type ReceiptWorker struct {
	invoices    repository.InvoiceRepository
	emails      EmailEnqueuer
	storagePath string
	storeName   string
}

func NewReceiptWorker(invoices repository.InvoiceRepository, emails EmailEnqueuer, storagePath, storeName string) *ReceiptWorker {
	return &ReceiptWorker{invoices: invoices, emails: emails, storagePath: storagePath, storeName: storeName}
}

func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("receipt_worker: invalid payload: %w", err))
	}
	id, err := uuid.Parse(payload.InvoiceID)
	if err != nil {
		return Permanent(fmt.Errorf("receipt_worker: invalid invoice_id %q", payload.InvoiceID))
	}

	inv, err := w.invoices.FindByID(ctx, id, nil)
	if repository.IsNotFound(err) {
		// Deleted before the job ran.
		return Permanent(fmt.Errorf("receipt_worker: invoice %s not found", id))
	}
	if err != nil {
		return err
	}

	path, err := infra.GenerateReceiptPDF(inv, w.storeName, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("invoice_number", inv.InvoiceNumber).Str("pdf", path).Msg("receipt_worker: PDF generated")

	if inv.Customer == nil || inv.Customer.Email == "" || w.emails == nil {
		return nil
	}
	job := EmailJobPayload{
		ToEmail: inv.Customer.Email,
		Subject: fmt.Sprintf("%s: receipt for invoice %s", w.storeName, inv.InvoiceNumber),
		Body: fmt.Sprintf("Hello %s,\n\nYour receipt for invoice %s is attached.\nTotal: %s\n",
			inv.Customer.FirstName, inv.InvoiceNumber, inv.TotalAmount.StringFixed(2)),
		PDFPath: path,
	}
	if err := w.emails.EnqueueEmail(ctx, job); err != nil {
		return fmt.Errorf("receipt_worker: enqueue email: %w", err)
	}
	return nil
}
