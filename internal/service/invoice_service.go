package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trinity/internal/authz"
	"trinity/internal/config"
	"trinity/internal/dto"
	"trinity/internal/metrics"
	"trinity/internal/model"
	"trinity/internal/money"
	"trinity/internal/repository"
	"trinity/internal/stocklock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Actor is the authenticated caller as seen by the service layer.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

func (a Actor) IsStaff() bool { return a.Role == model.RoleStaff }

// ReceiptDispatcher queues receipt rendering after an invoice commits.
type ReceiptDispatcher interface {
	EnqueueReceipt(ctx context.Context, invoiceID uuid.UUID) error
}

type InvoiceService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	List(ctx context.Context, actor Actor, filter dto.InvoiceFilter) (*dto.InvoiceListResponse, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*dto.InvoiceResponse, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	Patch(ctx context.Context, actor Actor, id uuid.UUID, req dto.PatchInvoiceRequest) (*dto.InvoiceResponse, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error

	ListItems(ctx context.Context, actor Actor, filter dto.InvoiceItemFilter) (*dto.InvoiceItemListResponse, error)
	GetItem(ctx context.Context, actor Actor, id uuid.UUID) (*dto.InvoiceItemResponse, error)

	// Receipt loads the invoice (customer and items included) for rendering.
	Receipt(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, error)
}

// InvoiceConfig holds the tunables of the creation protocol.
type InvoiceConfig struct {
	DefaultTaxRate    decimal.Decimal
	LockTimeout       time.Duration
	NumberMaxAttempts int
}

func DefaultInvoiceConfig() InvoiceConfig {
	return InvoiceConfig{
		DefaultTaxRate:    money.DefaultTaxRate,
		LockTimeout:       5 * time.Second,
		NumberMaxAttempts: 5,
	}
}

// InvoiceConfigFrom reads the invoicing settings out of the process config.
func InvoiceConfigFrom(cfg *config.Config) (InvoiceConfig, error) {
	out := DefaultInvoiceConfig()
	if cfg.DefaultTaxRate != "" {
		rate, err := decimal.NewFromString(cfg.DefaultTaxRate)
		if err != nil || !money.ValidTaxRate(rate) {
			return out, fmt.Errorf("DEFAULT_TAX_RATE %q must be a non-negative number up to 999.99 with two decimals", cfg.DefaultTaxRate)
		}
		out.DefaultTaxRate = rate
	}
	if cfg.StockLockTimeout > 0 {
		out.LockTimeout = cfg.StockLockTimeout
	}
	if cfg.InvoiceNumberMaxAttempts > 0 {
		out.NumberMaxAttempts = cfg.InvoiceNumberMaxAttempts
	}
	return out, nil
}

// InvoiceDeps are the collaborators of the invoice service. Dispatcher and
// Metrics may be nil.
type InvoiceDeps struct {
	Invoices   repository.InvoiceRepository
	Products   repository.ProductRepository
	Customers  repository.CustomerRepository
	Sequences  repository.InvoiceSequenceRepository
	Movements  repository.StockMovementRepository
	Locks      *stocklock.Manager
	Policy     *authz.Enforcer
	Dispatcher ReceiptDispatcher
	Metrics    *metrics.Metrics
}

type invoiceService struct {
	InvoiceDeps
	cfg InvoiceConfig
	now func() time.Time
}

func NewInvoiceService(deps InvoiceDeps, cfg InvoiceConfig) InvoiceService {
	if cfg.NumberMaxAttempts < 1 {
		cfg.NumberMaxAttempts = 1
	}
	if deps.Locks == nil {
		deps.Locks = stocklock.New(cfg.LockTimeout)
	}
	if deps.Policy == nil {
		deps.Policy = authz.MustNewEnforcer()
	}
	return &invoiceService{InvoiceDeps: deps, cfg: cfg, now: time.Now}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNNN for the UTC day of t.
func FormatInvoiceNumber(t time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", t.UTC().Format("20060102"), seq)
}

// ── Authorization ────────────────────────────────────────────────────────────

func (s *invoiceService) authorize(actor Actor, action string) (authz.Scope, error) {
	scope, err := s.Policy.Authorize(actor.Role, action)
	if errors.Is(err, authz.ErrDenied) {
		return "", ErrPermissionDenied
	}
	return scope, err
}

// ownerFilter resolves the customer restriction for scope. ok=false means
// the caller is restricted but has no profile, so nothing is visible.
func (s *invoiceService) ownerFilter(ctx context.Context, actor Actor, scope authz.Scope) (customerID *uuid.UUID, ok bool, err error) {
	if scope == authz.ScopeAll {
		return nil, true, nil
	}
	c, err := s.Customers.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, false, err
	}
	if c == nil {
		return nil, false, nil
	}
	id := c.ID
	return &id, true, nil
}

// ── Create ───────────────────────────────────────────────────────────────────
// Reservation protocol:
//   1. validate input, nothing locked yet
//   2. resolve the customer for the caller
//   3. lock products in-process, ascending id, bounded wait
//   4. TX: row locks (FOR UPDATE, ascending id), stock check, totals,
//      number, invoice + items, stock writes, movement audit
//   5. COMMIT, release locks, queue receipt

type lineRequest struct {
	productID uuid.UUID
	quantity  int
	unitPrice *decimal.Decimal
}

func (s *invoiceService) Create(ctx context.Context, actor Actor, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	inv, err := s.create(ctx, actor, req)
	if err != nil {
		s.Metrics.InvoiceCreateFailed(failureReason(err))
		log.Warn().Err(err).Str("user_id", actor.UserID.String()).Msg("invoice creation failed")
		return nil, err
	}

	s.Metrics.InvoiceCreated(inv.PaymentMethod, inv.Status)
	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("customer_id", inv.CustomerID.String()).
		Str("total", inv.TotalAmount.StringFixed(2)).
		Str("status", inv.Status).
		Msg("invoice created")

	if s.Dispatcher != nil {
		if err := s.Dispatcher.EnqueueReceipt(ctx, inv.ID); err != nil {
			log.Warn().Err(err).Str("invoice_id", inv.ID.String()).Msg("receipt job not queued")
		}
	}
	return invoiceToResponse(inv), nil
}

func (s *invoiceService) create(ctx context.Context, actor Actor, req dto.CreateInvoiceRequest) (*model.Invoice, error) {
	scope, err := s.authorize(actor, authz.ActionInvoiceCreate)
	if err != nil {
		return nil, err
	}

	lines, taxRate, paymentMethod, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	customer, err := s.resolveCustomer(ctx, actor, scope, req.Customer)
	if err != nil {
		return nil, err
	}

	requested := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, seen := requested[l.productID]; !seen {
			ids = append(ids, l.productID)
		}
		requested[l.productID] += l.quantity
	}
	ids = stocklock.SortedUnique(ids)

	waitStart := time.Now()
	release, err := s.Locks.Acquire(ctx, ids)
	s.Metrics.ObserveStockLockWait(time.Since(waitStart))
	if err != nil {
		if errors.Is(err, stocklock.ErrTimeout) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}
	defer release()

	now := s.now().UTC()
	inv := &model.Invoice{
		ID:                  uuid.New(),
		CustomerID:          customer.ID,
		Status:              InitialStatus(actor.IsStaff(), paymentMethod),
		PaymentMethod:       paymentMethod,
		TaxRate:             taxRate,
		PayPalTransactionID: req.PayPalTransactionID,
		PayPalPayerEmail:    req.PayPalPayerEmail,
		Notes:               req.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if inv.Status == model.InvoiceStatusPaid {
		inv.PaidAt = &now
	}

	txErr := runTx(ctx, s.Invoices.DB(), func(tx *gorm.DB) error {
		if err := repository.SetLocalLockTimeout(tx, s.cfg.LockTimeout); err != nil {
			return err
		}

		products, err := s.Products.LockForUpdateTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*model.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		for _, id := range ids {
			p, ok := byID[id]
			if !ok {
				return notFound("product " + id.String())
			}
			if !p.IsActive {
				return fieldError("items", "product "+p.Name+" is not available for sale.")
			}
			if p.QuantityInStock < requested[id] {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.QuantityInStock,
					Requested:   requested[id],
				}
			}
		}

		moneyLines := make([]money.Line, 0, len(lines))
		for _, l := range lines {
			p := byID[l.productID]
			price := p.Price
			if l.unitPrice != nil {
				price = *l.unitPrice
			}
			item := model.InvoiceItem{
				ID:           uuid.New(),
				InvoiceID:    inv.ID,
				ProductID:    p.ID,
				Quantity:     l.quantity,
				UnitPrice:    price,
				ProductName:  p.Name,
				ProductBrand: p.Brand,
				CreatedAt:    now,
			}
			item.ComputeTotalPrice()
			inv.Items = append(inv.Items, item)
			moneyLines = append(moneyLines, money.Line{UnitPrice: price, Quantity: l.quantity})
		}

		totals := money.ComputeTotals(moneyLines, taxRate)
		if !totals.FitsColumn() {
			return fieldError("items", "invoice total exceeds the maximum amount.")
		}
		inv.Subtotal = totals.Subtotal
		inv.TaxAmount = totals.TaxAmount
		inv.TotalAmount = totals.Total

		number, err := s.assignNumber(ctx, tx, req.InvoiceNumber, now)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number

		if err := s.Invoices.Create(ctx, tx, inv); err != nil {
			return err
		}

		for _, id := range ids {
			p := byID[id]
			before := p.QuantityInStock
			after := before - requested[id]
			if err := s.Products.SetStockTx(ctx, tx, id, after); err != nil {
				return err
			}
			ref := inv.ID
			mov := &model.StockMovement{
				ID:          uuid.New(),
				ProductID:   id,
				Kind:        model.StockMovementInvoice,
				Quantity:    -requested[id],
				StockBefore: before,
				StockAfter:  after,
				Reason:      "Invoice " + inv.InvoiceNumber,
				ReferenceID: &ref,
				CreatedAt:   now,
			}
			if err := s.Movements.CreateTx(ctx, tx, mov); err != nil {
				return err
			}
			p.QuantityInStock = after
		}
		return nil
	})
	if txErr != nil {
		return nil, translateStoreError(txErr)
	}

	inv.Customer = customer
	return inv, nil
}

func (s *invoiceService) validateCreate(req dto.CreateInvoiceRequest) ([]lineRequest, decimal.Decimal, string, error) {
	verr := &ValidationError{}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = model.PaymentCash
	}
	if !ValidPaymentMethod(paymentMethod) {
		verr.Add("payment_method", "\""+paymentMethod+"\" is not a valid choice.")
	}

	taxRate := s.cfg.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
		if !money.ValidTaxRate(taxRate) {
			verr.Add("tax_rate", "must be between 0 and 999.99 with at most 2 decimal places.")
		}
	}

	if req.InvoiceNumber != nil {
		n := strings.TrimSpace(*req.InvoiceNumber)
		if n == "" || len(n) > 50 {
			verr.Add("invoice_number", "must be 1 to 50 characters.")
		}
	}

	if len(req.Items) == 0 {
		verr.Add("items", "at least one item is required.")
	}
	lines := make([]lineRequest, 0, len(req.Items))
	for i, it := range req.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		pid, err := uuid.Parse(it.Product)
		if err != nil {
			verr.Add(prefix+"product", "must be a valid UUID.")
		}
		if it.Quantity < 1 {
			verr.Add(prefix+"quantity", "must be greater than or equal to 1.")
		}
		if it.UnitPrice != nil && !money.ValidUnitPrice(*it.UnitPrice) {
			verr.Add(prefix+"unit_price", "must be at least 0.01 with at most 2 decimal places.")
		}
		lines = append(lines, lineRequest{productID: pid, quantity: it.Quantity, unitPrice: it.UnitPrice})
	}

	if err := verr.OrNil(); err != nil {
		return nil, decimal.Zero, "", err
	}
	return lines, taxRate, paymentMethod, nil
}

func (s *invoiceService) resolveCustomer(ctx context.Context, actor Actor, scope authz.Scope, requested *string) (*model.Customer, error) {
	var requestedID *uuid.UUID
	if requested != nil && *requested != "" {
		id, err := uuid.Parse(*requested)
		if err != nil {
			return nil, fieldError("customer", "must be a valid UUID.")
		}
		requestedID = &id
	}

	if scope == authz.ScopeOwn {
		c, err := s.Customers.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, notFound("customer profile")
		}
		if requestedID != nil && *requestedID != c.ID {
			return nil, ErrPermissionDenied
		}
		return c, nil
	}

	if requestedID == nil {
		return nil, fieldError("customer", "this field is required.")
	}
	c, err := s.Customers.FindByID(ctx, *requestedID)
	if repository.IsNotFound(err) {
		return nil, fieldError("customer", "customer "+requestedID.String()+" does not exist.")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// assignNumber honours a caller-supplied number or draws the next one from
// the per-day counter, skipping values a caller already took.
func (s *invoiceService) assignNumber(ctx context.Context, tx *gorm.DB, supplied *string, now time.Time) (string, error) {
	if supplied != nil {
		number := strings.TrimSpace(*supplied)
		exists, err := s.Invoices.NumberExistsTx(ctx, tx, number)
		if err != nil {
			return "", err
		}
		if exists {
			return "", conflict("invoice number " + number + " already exists")
		}
		return number, nil
	}

	day := now.UTC().Format("20060102")
	for attempt := 0; attempt < s.cfg.NumberMaxAttempts; attempt++ {
		seq, err := s.Sequences.NextTx(ctx, tx, day)
		if err != nil {
			return "", err
		}
		number := FormatInvoiceNumber(now, seq)
		exists, err := s.Invoices.NumberExistsTx(ctx, tx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", conflict("could not allocate a free invoice number")
}

// translateStoreError maps driver errors onto the service taxonomy.
func translateStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsLockTimeout(err):
		return ErrLockTimeout
	case repository.IsUniqueViolation(err):
		return conflict("invoice number already exists")
	}
	return err
}

func failureReason(err error) string {
	var verr *ValidationError
	var stock *InsufficientStockError
	switch {
	case errors.As(err, &stock):
		return metrics.ReasonInsufficientStock
	case errors.As(err, &verr):
		return metrics.ReasonValidation
	case errors.Is(err, ErrNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, ErrPermissionDenied):
		return metrics.ReasonForbidden
	case errors.Is(err, ErrConflict):
		return metrics.ReasonConflict
	case errors.Is(err, ErrLockTimeout):
		return metrics.ReasonLockTimeout
	}
	return metrics.ReasonUnknown
}

// ── Read ─────────────────────────────────────────────────────────────────────

func (s *invoiceService) List(ctx context.Context, actor Actor, filter dto.InvoiceFilter) (*dto.InvoiceListResponse, error) {
	scope, err := s.authorize(actor, authz.ActionInvoiceList)
	if err != nil {
		return nil, err
	}
	page, limit := pageBounds(filter.Page, filter.Limit)
	resp := &dto.InvoiceListResponse{Data: []dto.InvoiceListItem{}, Page: page, Limit: limit}

	owner, ok, err := s.ownerFilter(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return resp, nil
	}

	rf := repository.InvoiceFilter{
		CustomerID:    owner,
		Status:        filter.Status,
		PaymentMethod: filter.PaymentMethod,
		Search:        strings.TrimSpace(filter.Search),
		Ordering:      filter.Ordering,
		Page:          page,
		Limit:         limit,
	}
	// The customer filter only applies to unrestricted callers.
	if owner == nil && filter.Customer != "" {
		cid, err := uuid.Parse(filter.Customer)
		if err != nil {
			return nil, fieldError("customer", "must be a valid UUID.")
		}
		rf.CustomerID = &cid
	}

	invoices, total, err := s.Invoices.List(ctx, rf)
	if err != nil {
		return nil, err
	}
	resp.Total = total
	for i := range invoices {
		resp.Data = append(resp.Data, invoiceToListItem(&invoices[i]))
	}
	return resp, nil
}

func (s *invoiceService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*dto.InvoiceResponse, error) {
	inv, scope, err := s.loadScoped(ctx, actor, authz.ActionInvoiceRetrieve, id)
	if err != nil {
		return nil, err
	}
	resp := invoiceToResponse(inv)
	if scope == authz.ScopeAll {
		movs, err := s.Movements.ListByReference(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		resp.StockMovements = movementsToResponse(movs)
	}
	return resp, nil
}

func (s *invoiceService) Receipt(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, error) {
	return s.load(ctx, actor, authz.ActionInvoiceReceipt, id)
}

// load fetches one invoice honouring the caller's scope. Invoices the caller
// may not see are reported as not found.
func (s *invoiceService) load(ctx context.Context, actor Actor, action string, id uuid.UUID) (*model.Invoice, error) {
	inv, _, err := s.loadScoped(ctx, actor, action, id)
	return inv, err
}

func (s *invoiceService) loadScoped(ctx context.Context, actor Actor, action string, id uuid.UUID) (*model.Invoice, authz.Scope, error) {
	scope, err := s.authorize(actor, action)
	if err != nil {
		return nil, "", err
	}
	owner, ok, err := s.ownerFilter(ctx, actor, scope)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", notFound("invoice")
	}
	inv, err := s.Invoices.FindByID(ctx, id, owner)
	if repository.IsNotFound(err) {
		return nil, "", notFound("invoice")
	}
	if err != nil {
		return nil, "", err
	}
	return inv, scope, nil
}

func (s *invoiceService) ListItems(ctx context.Context, actor Actor, filter dto.InvoiceItemFilter) (*dto.InvoiceItemListResponse, error) {
	scope, err := s.authorize(actor, authz.ActionInvoiceItemList)
	if err != nil {
		return nil, err
	}
	page, limit := pageBounds(filter.Page, filter.Limit)
	resp := &dto.InvoiceItemListResponse{Data: []dto.InvoiceItemResponse{}, Page: page, Limit: limit}

	owner, ok, err := s.ownerFilter(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return resp, nil
	}

	rf := repository.InvoiceItemFilter{CustomerID: owner, Page: page, Limit: limit}
	if filter.Invoice != "" {
		iid, err := uuid.Parse(filter.Invoice)
		if err != nil {
			return nil, fieldError("invoice", "must be a valid UUID.")
		}
		rf.InvoiceID = &iid
	}

	items, total, err := s.Invoices.ListItems(ctx, rf)
	if err != nil {
		return nil, err
	}
	resp.Total = total
	for i := range items {
		resp.Data = append(resp.Data, itemToResponse(&items[i]))
	}
	return resp, nil
}

func (s *invoiceService) GetItem(ctx context.Context, actor Actor, id uuid.UUID) (*dto.InvoiceItemResponse, error) {
	scope, err := s.authorize(actor, authz.ActionInvoiceItemRetrieve)
	if err != nil {
		return nil, err
	}
	owner, ok, err := s.ownerFilter(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("invoice item")
	}
	it, err := s.Invoices.FindItem(ctx, id, owner)
	if repository.IsNotFound(err) {
		return nil, notFound("invoice item")
	}
	if err != nil {
		return nil, err
	}
	resp := itemToResponse(it)
	return &resp, nil
}

// ── Update / Patch / Delete ──────────────────────────────────────────────────

// invoiceChanges is the normalised form of PUT and PATCH bodies.
type invoiceChanges struct {
	status              *string
	paymentMethod       *string
	taxRate             *decimal.Decimal
	notes               *string
	paypalTransactionID *string
	paypalPayerEmail    *string
}

func (s *invoiceService) Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if _, err := s.authorize(actor, authz.ActionInvoiceUpdate); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	if req.Status == "" {
		verr.Add("status", "this field is required.")
	}
	if req.PaymentMethod == "" {
		verr.Add("payment_method", "this field is required.")
	}
	if req.TaxRate == nil {
		verr.Add("tax_rate", "this field is required.")
	}
	if req.Notes == nil {
		verr.Add("notes", "this field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	ch := invoiceChanges{
		status:              &req.Status,
		paymentMethod:       &req.PaymentMethod,
		taxRate:             req.TaxRate,
		notes:               req.Notes,
		paypalTransactionID: &req.PayPalTransactionID,
		paypalPayerEmail:    &req.PayPalPayerEmail,
	}
	return s.apply(ctx, actor, authz.ActionInvoiceUpdate, id, ch)
}

func (s *invoiceService) Patch(ctx context.Context, actor Actor, id uuid.UUID, req dto.PatchInvoiceRequest) (*dto.InvoiceResponse, error) {
	ch := invoiceChanges{
		status:              req.Status,
		paymentMethod:       req.PaymentMethod,
		taxRate:             req.TaxRate,
		notes:               req.Notes,
		paypalTransactionID: req.PayPalTransactionID,
		paypalPayerEmail:    req.PayPalPayerEmail,
	}
	return s.apply(ctx, actor, authz.ActionInvoicePatch, id, ch)
}

func (s *invoiceService) apply(ctx context.Context, actor Actor, action string, id uuid.UUID, ch invoiceChanges) (*dto.InvoiceResponse, error) {
	inv, err := s.load(ctx, actor, action, id)
	if err != nil {
		return nil, err
	}
	prevStatus := inv.Status

	now := s.now().UTC()
	verr := &ValidationError{}

	if ch.paymentMethod != nil {
		if ValidPaymentMethod(*ch.paymentMethod) {
			inv.PaymentMethod = *ch.paymentMethod
		} else {
			verr.Add("payment_method", "\""+*ch.paymentMethod+"\" is not a valid choice.")
		}
	}
	if ch.taxRate != nil {
		if money.ValidTaxRate(*ch.taxRate) {
			totals := money.FromSubtotal(inv.Subtotal, *ch.taxRate)
			if totals.FitsColumn() {
				inv.TaxRate = *ch.taxRate
				inv.TaxAmount = totals.TaxAmount
				inv.TotalAmount = totals.Total
			} else {
				verr.Add("tax_rate", "resulting total exceeds the maximum amount.")
			}
		} else {
			verr.Add("tax_rate", "must be between 0 and 999.99 with at most 2 decimal places.")
		}
	}
	if ch.notes != nil {
		inv.Notes = *ch.notes
	}
	if ch.paypalTransactionID != nil {
		inv.PayPalTransactionID = *ch.paypalTransactionID
	}
	if ch.paypalPayerEmail != nil {
		inv.PayPalPayerEmail = *ch.paypalPayerEmail
	}
	if ch.status != nil {
		if err := ApplyStatus(inv, *ch.status, now); err != nil {
			var fe *ValidationError
			if errors.As(err, &fe) {
				for k, v := range fe.Fields {
					verr.Add(k, v)
				}
			}
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	inv.UpdatedAt = now
	if err := s.Invoices.Update(ctx, inv, prevStatus); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("invoice")
		}
		if errors.Is(err, repository.ErrStaleInvoice) {
			return nil, conflict("invoice was changed by another request, reload and retry")
		}
		return nil, err
	}
	log.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("status", inv.Status).
		Str("user_id", actor.UserID.String()).
		Msg("invoice updated")
	return invoiceToResponse(inv), nil
}

// Delete removes the invoice and its items. Stock is not restored.
func (s *invoiceService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.authorize(actor, authz.ActionInvoiceDestroy); err != nil {
		return err
	}
	if err := s.Invoices.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound("invoice")
		}
		return err
	}
	log.Info().Str("invoice_id", id.String()).Str("user_id", actor.UserID.String()).Msg("invoice deleted")
	return nil
}

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}
