package shared

import (
	"context"
	"fmt"
)

// Scope is the tenant boundary for a single request. Every repository read
// and write is filtered by it. A super-admin scope sees all tenants; any
// other scope is pinned to one owner account.
type Scope struct {
	OwnerID    int64
	SuperAdmin bool
}

// OwnerScope returns a scope pinned to a single tenant.
func OwnerScope(ownerID int64) Scope {
	return Scope{OwnerID: ownerID}
}

// AllTenants returns the unrestricted super-admin scope.
func AllTenants() Scope {
	return Scope{SuperAdmin: true}
}

// Valid reports whether the scope may be used at all. A zero scope on a
// non-super-admin principal means tenant resolution failed upstream and the
// request must be blocked rather than widened.
func (s Scope) Valid() bool {
	return s.SuperAdmin || s.OwnerID > 0
}

// Covers reports whether the scope may touch data belonging to ownerID.
func (s Scope) Covers(ownerID int64) bool {
	if s.SuperAdmin {
		return true
	}
	return s.OwnerID == ownerID && s.OwnerID > 0
}

// Check returns ErrPermission when the scope does not cover ownerID.
func (s Scope) Check(ownerID int64) error {
	if !s.Valid() {
		return fmt.Errorf("unresolved tenant scope: %w", ErrPermission)
	}
	if !s.Covers(ownerID) {
		return fmt.Errorf("record belongs to another tenant: %w", ErrPermission)
	}
	return nil
}

type scopeContextKey struct{}

// ContextWithScope stores the resolved tenant scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the tenant scope. The second return is false
// when no resolver ran for this request.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}
