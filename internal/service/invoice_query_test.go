package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trinity/internal/dto"
	"trinity/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedInvoice creates an invoice through the service for cust.
func (f *fixture) seedInvoice(t *testing.T, cust *model.Customer, price string, qty int) *dto.InvoiceResponse {
	t.Helper()
	p := f.products.add("Item "+price, price, qty+10)
	resp, err := f.svc.Create(context.Background(), staffActor(), staffCreate(cust, item(p, qty)))
	require.NoError(t, err)
	return resp
}

// ── List / Get ───────────────────────────────────────────────────────────────

func TestList_StaffSeesAllAndCanFilterByCustomer(t *testing.T) {
	f := newFixture()
	ada := f.customers.add("Ada", nil)
	bea := f.customers.add("Bea", nil)
	f.seedInvoice(t, ada, "1.00", 1)
	f.seedInvoice(t, bea, "2.00", 1)

	all, err := f.svc.List(context.Background(), staffActor(), dto.InvoiceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 50, all.Limit)

	only, err := f.svc.List(context.Background(), staffActor(), dto.InvoiceFilter{Customer: bea.ID.String()})
	require.NoError(t, err)
	require.Len(t, only.Data, 1)
	assert.Equal(t, bea.ID.String(), only.Data[0].Customer)
}

func TestList_CustomerSeesOnlyOwnInvoices(t *testing.T) {
	f := newFixture()
	actor, mine := f.customerActor("Ada")
	other := f.customers.add("Bea", nil)
	f.seedInvoice(t, mine, "1.00", 2)
	f.seedInvoice(t, other, "2.00", 1)

	// The customer filter is ignored for restricted callers.
	resp, err := f.svc.List(context.Background(), actor, dto.InvoiceFilter{Customer: other.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, mine.ID.String(), resp.Data[0].Customer)
	assert.Equal(t, 2, resp.Data[0].TotalItems)
}

func TestList_CustomerWithoutProfileGetsEmptyPage(t *testing.T) {
	f := newFixture()
	f.seedInvoice(t, f.customers.add("Ada", nil), "1.00", 1)

	resp, err := f.svc.List(context.Background(), Actor{UserID: uuid.New(), Role: model.RoleCustomer}, dto.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.EqualValues(t, 0, resp.Total)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture()
	ada := f.customers.add("Ada", nil)
	inv := f.seedInvoice(t, ada, "1.00", 1)
	f.seedInvoice(t, ada, "1.00", 1)

	_, err := f.svc.Patch(context.Background(), staffActor(), uuid.MustParse(inv.ID), dto.PatchInvoiceRequest{Status: strPtr(model.InvoiceStatusPaid)})
	require.NoError(t, err)

	resp, err := f.svc.List(context.Background(), staffActor(), dto.InvoiceFilter{Status: model.InvoiceStatusPaid})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, inv.ID, resp.Data[0].ID)
}

func TestGet_OtherCustomersInvoiceIsNotFound(t *testing.T) {
	f := newFixture()
	actor, mine := f.customerActor("Ada")
	other := f.customers.add("Bea", nil)
	own := f.seedInvoice(t, mine, "1.00", 1)
	theirs := f.seedInvoice(t, other, "1.00", 1)

	_, err := f.svc.Get(context.Background(), actor, uuid.MustParse(own.ID))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), actor, uuid.MustParse(theirs.ID))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Receipt(context.Background(), actor, uuid.MustParse(theirs.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_StaffSeesStockMovements(t *testing.T) {
	f := newFixture()
	actor, cust := f.customerActor("Ada")
	inv := f.seedInvoice(t, cust, "2.00", 3)
	id := uuid.MustParse(inv.ID)

	resp, err := f.svc.Get(context.Background(), staffActor(), id)
	require.NoError(t, err)
	require.Len(t, resp.StockMovements, 1)
	mv := resp.StockMovements[0]
	assert.Equal(t, inv.Items[0].Product, mv.Product)
	assert.Equal(t, model.StockMovementInvoice, mv.Kind)
	assert.Equal(t, -3, mv.Quantity)
	assert.Equal(t, 13, mv.StockBefore)
	assert.Equal(t, 10, mv.StockAfter)

	resp, err = f.svc.Get(context.Background(), actor, id)
	require.NoError(t, err)
	assert.Empty(t, resp.StockMovements)
}

func TestGet_Missing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Get(context.Background(), staffActor(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

// ── Items ────────────────────────────────────────────────────────────────────

func TestItems_ScopedLikeInvoices(t *testing.T) {
	f := newFixture()
	actor, mine := f.customerActor("Ada")
	other := f.customers.add("Bea", nil)
	own := f.seedInvoice(t, mine, "1.00", 1)
	theirs := f.seedInvoice(t, other, "1.00", 1)

	list, err := f.svc.ListItems(context.Background(), actor, dto.InvoiceItemFilter{})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, own.ID, list.Data[0].Invoice)

	_, err = f.svc.GetItem(context.Background(), actor, uuid.MustParse(own.Items[0].ID))
	require.NoError(t, err)
	_, err = f.svc.GetItem(context.Background(), actor, uuid.MustParse(theirs.Items[0].ID))
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := f.svc.ListItems(context.Background(), staffActor(), dto.InvoiceItemFilter{Invoice: theirs.ID})
	require.NoError(t, err)
	require.Len(t, all.Data, 1)
	assert.Equal(t, theirs.ID, all.Data[0].Invoice)
}

// ── Update / Patch / Delete ──────────────────────────────────────────────────

func TestPatch_TaxRateRecomputesTotals(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)

	resp, err := f.svc.Patch(context.Background(), staffActor(), uuid.MustParse(inv.ID), dto.PatchInvoiceRequest{TaxRate: decPtr("7.50")})
	require.NoError(t, err)
	assert.Equal(t, "10.00", resp.Subtotal)
	assert.Equal(t, "7.50", resp.TaxRate)
	assert.Equal(t, "0.75", resp.TaxAmount)
	assert.Equal(t, "10.75", resp.TotalAmount)
}

func TestPatch_StatusLifecycle(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)
	id := uuid.MustParse(inv.ID)

	resp, err := f.svc.Patch(context.Background(), staffActor(), id, dto.PatchInvoiceRequest{Status: strPtr(model.InvoiceStatusPaid)})
	require.NoError(t, err)
	require.NotNil(t, resp.PaidAt)
	assert.Equal(t, fixedNow.Format(time.RFC3339), *resp.PaidAt)

	resp, err = f.svc.Patch(context.Background(), staffActor(), id, dto.PatchInvoiceRequest{Status: strPtr(model.InvoiceStatusRefunded)})
	require.NoError(t, err)
	assert.Nil(t, resp.PaidAt)

	_, err = f.svc.Patch(context.Background(), staffActor(), id, dto.PatchInvoiceRequest{Status: strPtr(model.InvoiceStatusPending)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")
}

// readBarrier holds every FindByID until n readers have arrived, so
// concurrent writers all start from the same snapshot.
type readBarrier struct {
	*stubInvoiceRepo
	wg *sync.WaitGroup
}

func (r readBarrier) FindByID(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.Invoice, error) {
	inv, err := r.stubInvoiceRepo.FindByID(ctx, id, customerID)
	r.wg.Done()
	r.wg.Wait()
	return inv, err
}

func TestPatch_ConcurrentStatusChangesDoNotOverwrite(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)
	id := uuid.MustParse(inv.ID)

	var reads sync.WaitGroup
	reads.Add(2)
	f.svc.Invoices = readBarrier{stubInvoiceRepo: f.invoices, wg: &reads}

	targets := []string{model.InvoiceStatusPaid, model.InvoiceStatusCancelled}
	errs := make([]error, len(targets))
	var done sync.WaitGroup
	for i, status := range targets {
		done.Add(1)
		go func(i int, status string) {
			defer done.Done()
			_, errs[i] = f.svc.Patch(context.Background(), staffActor(), id, dto.PatchInvoiceRequest{Status: strPtr(status)})
		}(i, status)
	}
	done.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "both concurrent updates succeeded")
			winner = i
			continue
		}
		assert.True(t, errors.Is(err, ErrConflict), "unexpected error: %v", err)
	}
	require.NotEqual(t, -1, winner, "no update succeeded")

	stored, err := f.invoices.FindByID(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Equal(t, targets[winner], stored.Status)
}

func TestPatch_InvalidFieldsLeaveInvoiceUnchanged(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)
	id := uuid.MustParse(inv.ID)

	_, err := f.svc.Patch(context.Background(), staffActor(), id, dto.PatchInvoiceRequest{
		Notes:   strPtr("changed"),
		TaxRate: decPtr("-1"),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.svc.Get(context.Background(), staffActor(), id)
	require.NoError(t, err)
	assert.Equal(t, "", got.Notes)
	assert.Equal(t, "20.00", got.TaxRate)
}

func TestUpdate_RequiresAllFields(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)

	_, err := f.svc.Update(context.Background(), staffActor(), uuid.MustParse(inv.ID), dto.UpdateInvoiceRequest{Status: model.InvoiceStatusPaid})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "payment_method")
	assert.Contains(t, verr.Fields, "tax_rate")
	assert.Contains(t, verr.Fields, "notes")
}

func TestUpdate_ReplacesMutableFields(t *testing.T) {
	f := newFixture()
	inv := f.seedInvoice(t, f.customers.add("Ada", nil), "10.00", 1)

	resp, err := f.svc.Update(context.Background(), staffActor(), uuid.MustParse(inv.ID), dto.UpdateInvoiceRequest{
		Status:        model.InvoiceStatusCancelled,
		PaymentMethod: model.PaymentOther,
		TaxRate:       decPtr("0"),
		Notes:         strPtr("customer left"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusCancelled, resp.Status)
	assert.Equal(t, model.PaymentOther, resp.PaymentMethod)
	assert.Equal(t, "10.00", resp.TotalAmount)
	assert.Equal(t, "customer left", resp.Notes)
	assert.Equal(t, inv.InvoiceNumber, resp.InvoiceNumber)
	assert.Equal(t, inv.Customer, resp.Customer)
}

func TestMutations_ForbiddenForCustomers(t *testing.T) {
	f := newFixture()
	actor, mine := f.customerActor("Ada")
	inv := f.seedInvoice(t, mine, "1.00", 1)
	id := uuid.MustParse(inv.ID)

	_, err := f.svc.Patch(context.Background(), actor, id, dto.PatchInvoiceRequest{Notes: strPtr("x")})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, err = f.svc.Update(context.Background(), actor, id, dto.UpdateInvoiceRequest{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), actor, id), ErrPermissionDenied)
}

func TestDelete_RemovesInvoiceWithoutRestock(t *testing.T) {
	f := newFixture()
	cust := f.customers.add("Ada", nil)
	p := f.products.add("A", "1.00", 5)
	resp, err := f.svc.Create(context.Background(), staffActor(), staffCreate(cust, item(p, 2)))
	require.NoError(t, err)
	id := uuid.MustParse(resp.ID)

	require.NoError(t, f.svc.Delete(context.Background(), staffActor(), id))
	assert.Equal(t, 0, f.invoices.count())
	assert.Equal(t, 3, f.products.stock(p.ID))

	assert.ErrorIs(t, f.svc.Delete(context.Background(), staffActor(), id), ErrNotFound)
}
