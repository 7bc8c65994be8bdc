package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trinity/internal/infra"
	"trinity/internal/model"
	"trinity/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDecide(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		attempts int
		err      error
		want     string
	}{
		{"success", 0, nil, outcomeOK},
		{"first failure retries", 0, boom, outcomeRetry},
		{"second failure retries", 1, boom, outcomeRetry},
		{"third failure dead-letters", 2, boom, outcomeDLQ},
		{"permanent skips retries", 0, Permanent(boom), outcomeDLQ},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(Job{Attempts: tt.attempts}, tt.err))
		})
	}
}

func TestPermanent_Unwraps(t *testing.T) {
	base := errors.New("bad payload")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.True(t, isPermanent(err))
	assert.False(t, isPermanent(base))
}

func TestQueueFor(t *testing.T) {
	assert.Equal(t, QueueEmail, queueFor(JobEmail))
	assert.Equal(t, QueueReceipt, queueFor(JobReceipt))
}

// --- receipt worker ---

type stubInvoices struct {
	repository.InvoiceRepository
	inv *model.Invoice
	err error
}

func (s *stubInvoices) FindByID(_ context.Context, id uuid.UUID, _ *uuid.UUID) (*model.Invoice, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.inv == nil || s.inv.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.inv, nil
}

type captureEmails struct {
	jobs []EmailJobPayload
	err  error
}

func (c *captureEmails) EnqueueEmail(_ context.Context, p EmailJobPayload) error {
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, p)
	return nil
}

func testInvoice(email string) *model.Invoice {
	price := decimal.RequireFromString("2.50")
	return &model.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-20250314-0001",
		Customer:      &model.Customer{FirstName: "Ada", LastName: "Lovelace", Email: email},
		Status:        model.InvoiceStatusPending,
		PaymentMethod: model.PaymentCash,
		Subtotal:      decimal.RequireFromString("5.00"),
		TaxRate:       decimal.RequireFromString("20.00"),
		TaxAmount:     decimal.RequireFromString("1.00"),
		TotalAmount:   decimal.RequireFromString("6.00"),
		CreatedAt:     time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Items: []model.InvoiceItem{{
			ID: uuid.New(), ProductName: "Milk", Quantity: 2, UnitPrice: price, TotalPrice: price.Mul(decimal.NewFromInt(2)),
		}},
	}
}

func payloadFor(t *testing.T, id string) json.RawMessage {
	raw, err := json.Marshal(ReceiptJobPayload{InvoiceID: id})
	require.NoError(t, err)
	return raw
}

func TestReceiptWorker_GeneratesPDFAndQueuesEmail(t *testing.T) {
	dir := t.TempDir()
	inv := testInvoice("ada@example.com")
	emails := &captureEmails{}
	w := NewReceiptWorker(&stubInvoices{inv: inv}, emails, dir, "Trinity Grocery")

	require.NoError(t, w.Process(context.Background(), payloadFor(t, inv.ID.String())))

	path := filepath.Join(dir, infra.ReceiptFileName(inv))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.Len(t, emails.jobs, 1)
	assert.Equal(t, "ada@example.com", emails.jobs[0].ToEmail)
	assert.Equal(t, path, emails.jobs[0].PDFPath)
	assert.Contains(t, emails.jobs[0].Subject, inv.InvoiceNumber)
	assert.Contains(t, emails.jobs[0].Body, "6.00")
}

func TestReceiptWorker_NoEmailWithoutAddress(t *testing.T) {
	inv := testInvoice("")
	emails := &captureEmails{}
	w := NewReceiptWorker(&stubInvoices{inv: inv}, emails, t.TempDir(), "Trinity Grocery")

	require.NoError(t, w.Process(context.Background(), payloadFor(t, inv.ID.String())))
	assert.Empty(t, emails.jobs)
}

func TestReceiptWorker_MissingInvoiceIsPermanent(t *testing.T) {
	w := NewReceiptWorker(&stubInvoices{}, nil, t.TempDir(), "Trinity Grocery")
	err := w.Process(context.Background(), payloadFor(t, uuid.NewString()))
	require.Error(t, err)
	assert.True(t, isPermanent(err))
}

func TestReceiptWorker_BadPayloadIsPermanent(t *testing.T) {
	w := NewReceiptWorker(&stubInvoices{}, nil, t.TempDir(), "Trinity Grocery")

	err := w.Process(context.Background(), json.RawMessage(`{`))
	assert.True(t, isPermanent(err))

	err = w.Process(context.Background(), payloadFor(t, "not-a-uuid"))
	assert.True(t, isPermanent(err))
}

func TestReceiptWorker_StoreErrorIsRetryable(t *testing.T) {
	w := NewReceiptWorker(&stubInvoices{err: errors.New("connection reset")}, nil, t.TempDir(), "Trinity Grocery")
	err := w.Process(context.Background(), payloadFor(t, uuid.NewString()))
	require.Error(t, err)
	assert.False(t, isPermanent(err))
}

// --- email worker ---

type fakeMailer struct {
	calls int
	err   error
}

func (f *fakeMailer) SendReceipt(_, _, _, _ string) error {
	f.calls++
	return f.err
}

func emailPayload(t *testing.T, to string) json.RawMessage {
	raw, err := json.Marshal(EmailJobPayload{ToEmail: to, Subject: "s", Body: "b"})
	require.NoError(t, err)
	return raw
}

func TestEmailWorker_Sends(t *testing.T) {
	m := &fakeMailer{}
	w := NewEmailWorker(m, nil)
	require.NoError(t, w.Process(context.Background(), emailPayload(t, "a@example.com")))
	assert.Equal(t, 1, m.calls)
}

func TestEmailWorker_SkipsEmptyRecipient(t *testing.T) {
	m := &fakeMailer{}
	w := NewEmailWorker(m, nil)
	require.NoError(t, w.Process(context.Background(), emailPayload(t, "")))
	assert.Zero(t, m.calls)
}

func TestEmailWorker_OpenBreakerStopsCalls(t *testing.T) {
	m := &fakeMailer{err: errors.New("relay down")}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour,
	})
	w := NewEmailWorker(m, cb)

	for i := 0; i < 2; i++ {
		require.Error(t, w.Process(context.Background(), emailPayload(t, "a@example.com")))
	}
	err := w.Process(context.Background(), emailPayload(t, "a@example.com"))
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Equal(t, 2, m.calls)
}
