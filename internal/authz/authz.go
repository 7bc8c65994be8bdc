// Package authz holds the invoice policy table and evaluates it with casbin.
// Each rule grants a role an action at a scope: "all" rows or only the rows
// owned by the caller's customer profile.
package authz

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var modelText string

const (
	ActionInvoiceCreate   = "invoice.create"
	ActionInvoiceList     = "invoice.list"
	ActionInvoiceRetrieve = "invoice.retrieve"
	ActionInvoiceUpdate   = "invoice.update"
	ActionInvoicePatch    = "invoice.patch"
	ActionInvoiceDestroy  = "invoice.destroy"
	ActionInvoiceReceipt  = "invoice.receipt"

	ActionInvoiceItemList     = "invoice_item.list"
	ActionInvoiceItemRetrieve = "invoice_item.retrieve"
)

const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// Scope narrows what an allowed action may touch.
type Scope string

const (
	ScopeAll Scope = "all"
	ScopeOwn Scope = "own"
)

// ErrDenied is returned when no rule grants the action.
var ErrDenied = errors.New("authz: action not permitted")

type rule struct {
	role   string
	action string
	scope  Scope
}

var policy = []rule{
	{RoleStaff, ActionInvoiceCreate, ScopeAll},
	{RoleStaff, ActionInvoiceList, ScopeAll},
	{RoleStaff, ActionInvoiceRetrieve, ScopeAll},
	{RoleStaff, ActionInvoiceUpdate, ScopeAll},
	{RoleStaff, ActionInvoicePatch, ScopeAll},
	{RoleStaff, ActionInvoiceDestroy, ScopeAll},
	{RoleStaff, ActionInvoiceReceipt, ScopeAll},
	{RoleStaff, ActionInvoiceItemList, ScopeAll},
	{RoleStaff, ActionInvoiceItemRetrieve, ScopeAll},

	{RoleCustomer, ActionInvoiceCreate, ScopeOwn},
	{RoleCustomer, ActionInvoiceList, ScopeOwn},
	{RoleCustomer, ActionInvoiceRetrieve, ScopeOwn},
	{RoleCustomer, ActionInvoiceReceipt, ScopeOwn},
	{RoleCustomer, ActionInvoiceItemList, ScopeOwn},
	{RoleCustomer, ActionInvoiceItemRetrieve, ScopeOwn},
}

// Enforcer answers policy questions. Safe for concurrent use.
type Enforcer struct {
	e *casbin.SyncedEnforcer
}

// NewEnforcer builds the enforcer with the built-in policy loaded.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: parse model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: new enforcer: %w", err)
	}
	rules := make([][]string, 0, len(policy))
	for _, r := range policy {
		rules = append(rules, []string{r.role, r.action, string(r.scope)})
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("authz: load policy: %w", err)
	}
	return &Enforcer{e: e}, nil
}

// MustNewEnforcer panics if the embedded policy cannot be loaded.
func MustNewEnforcer() *Enforcer {
	e, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	return e
}

// Authorize returns the widest scope role holds for action, or ErrDenied.
func (a *Enforcer) Authorize(role, action string) (Scope, error) {
	for _, scope := range []Scope{ScopeAll, ScopeOwn} {
		ok, err := a.e.Enforce(role, action, string(scope))
		if err != nil {
			return "", fmt.Errorf("authz: enforce %s/%s: %w", role, action, err)
		}
		if ok {
			return scope, nil
		}
	}
	return "", ErrDenied
}
