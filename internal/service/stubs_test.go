package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"trinity/internal/authz"
	"trinity/internal/model"
	"trinity/internal/repository"
	"trinity/internal/stocklock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) add(name string, price string, stock int) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &model.Product{
		ID:              uuid.New(),
		Name:            name,
		Brand:           "House",
		Price:           decimal.RequireFromString(price),
		QuantityInStock: stock,
		IsActive:        true,
	}
	r.products[p.ID] = p
	return p
}

func (r *stubProductRepo) stock(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].QuantityInStock
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) LockForUpdateTx(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(ids))
	for _, id := range stocklock.SortedUnique(ids) {
		if p, ok := r.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubProductRepo) SetStockTx(_ context.Context, _ *gorm.DB, id uuid.UUID, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.QuantityInStock = stock
	return nil
}

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

type stubCustomerRepo struct {
	byID map[uuid.UUID]*model.Customer
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{byID: make(map[uuid.UUID]*model.Customer)}
}

func (r *stubCustomerRepo) add(first string, userID *uuid.UUID) *model.Customer {
	c := &model.Customer{
		ID:        uuid.New(),
		UserID:    userID,
		FirstName: first,
		LastName:  "Tester",
		Email:     strings.ToLower(first) + "@example.com",
		IsActive:  true,
	}
	r.byID[c.ID] = c
	return c
}

func (r *stubCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *stubCustomerRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*model.Customer, error) {
	for _, c := range r.byID {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return nil, nil
}

func (r *stubCustomerRepo) Create(_ context.Context, c *model.Customer) error {
	r.byID[c.ID] = c
	return nil
}

var _ repository.CustomerRepository = (*stubCustomerRepo)(nil)

type stubInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*model.Invoice
	numbers  map[string]bool
}

func newStubInvoiceRepo() *stubInvoiceRepo {
	return &stubInvoiceRepo{
		invoices: make(map[uuid.UUID]*model.Invoice),
		numbers:  make(map[string]bool),
	}
}

func (r *stubInvoiceRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

func (r *stubInvoiceRepo) Create(_ context.Context, _ *gorm.DB, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.numbers[inv.InvoiceNumber] {
		return gorm.ErrDuplicatedKey
	}
	cp := *inv
	cp.Items = append([]model.InvoiceItem(nil), inv.Items...)
	r.invoices[inv.ID] = &cp
	r.numbers[inv.InvoiceNumber] = true
	return nil
}

func (r *stubInvoiceRepo) NumberExistsTx(_ context.Context, _ *gorm.DB, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.numbers[number], nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || (customerID != nil && inv.CustomerID != *customerID) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *stubInvoiceRepo) List(_ context.Context, f repository.InvoiceFilter) ([]model.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, inv := range r.invoices {
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.PaymentMethod != "" && inv.PaymentMethod != f.PaymentMethod {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNumber), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out, int64(len(out)), nil
}

func (r *stubInvoiceRepo) Update(_ context.Context, inv *model.Invoice, expectedStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Status != expectedStatus {
		return repository.ErrStaleInvoice
	}
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *stubInvoiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.numbers, inv.InvoiceNumber)
	delete(r.invoices, id)
	return nil
}

func (r *stubInvoiceRepo) ListItems(_ context.Context, f repository.InvoiceItemFilter) ([]model.InvoiceItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InvoiceItem
	for _, inv := range r.invoices {
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.InvoiceID != nil && inv.ID != *f.InvoiceID {
			continue
		}
		out = append(out, inv.Items...)
	}
	return out, int64(len(out)), nil
}

func (r *stubInvoiceRepo) FindItem(_ context.Context, id uuid.UUID, customerID *uuid.UUID) (*model.InvoiceItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if customerID != nil && inv.CustomerID != *customerID {
			continue
		}
		for i := range inv.Items {
			if inv.Items[i].ID == id {
				it := inv.Items[i]
				return &it, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubInvoiceRepo) DB() *gorm.DB { return nil }

var _ repository.InvoiceRepository = (*stubInvoiceRepo)(nil)

type stubSequenceRepo struct {
	mu   sync.Mutex
	days map[string]int
}

func (r *stubSequenceRepo) NextTx(_ context.Context, _ *gorm.DB, day string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.days == nil {
		r.days = make(map[string]int)
	}
	r.days[day]++
	return r.days[day], nil
}

var _ repository.InvoiceSequenceRepository = (*stubSequenceRepo)(nil)

type stubMovementRepo struct {
	mu        sync.Mutex
	movements []model.StockMovement
}

func (r *stubMovementRepo) CreateTx(_ context.Context, _ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubMovementRepo) ListByReference(_ context.Context, ref uuid.UUID) ([]model.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.ReferenceID != nil && *m.ReferenceID == ref {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubMovementRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.movements)
}

var _ repository.StockMovementRepository = (*stubMovementRepo)(nil)

type stubDispatcher struct {
	mu     sync.Mutex
	queued []uuid.UUID
}

func (d *stubDispatcher) EnqueueReceipt(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queued = append(d.queued, id)
	return nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc        *invoiceService
	invoices   *stubInvoiceRepo
	products   *stubProductRepo
	customers  *stubCustomerRepo
	movements  *stubMovementRepo
	dispatcher *stubDispatcher
	locks      *stocklock.Manager
}

func newFixture() *fixture {
	f := &fixture{
		invoices:   newStubInvoiceRepo(),
		products:   newStubProductRepo(),
		customers:  newStubCustomerRepo(),
		movements:  &stubMovementRepo{},
		dispatcher: &stubDispatcher{},
		locks:      stocklock.New(time.Second),
	}
	cfg := DefaultInvoiceConfig()
	cfg.LockTimeout = time.Second
	svc := NewInvoiceService(InvoiceDeps{
		Invoices:   f.invoices,
		Products:   f.products,
		Customers:  f.customers,
		Sequences:  &stubSequenceRepo{},
		Movements:  f.movements,
		Locks:      f.locks,
		Policy:     authz.MustNewEnforcer(),
		Dispatcher: f.dispatcher,
	}, cfg).(*invoiceService)
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

func staffActor() Actor { return Actor{UserID: uuid.New(), Role: model.RoleStaff} }

// customerActor returns an actor together with its linked profile.
func (f *fixture) customerActor(name string) (Actor, *model.Customer) {
	uid := uuid.New()
	c := f.customers.add(name, &uid)
	return Actor{UserID: uid, Role: model.RoleCustomer}, c
}

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func repositoryItemFilterAll() repository.InvoiceItemFilter {
	return repository.InvoiceItemFilter{Page: 1, Limit: 1000}
}
