package tenancy

import (
	"context"
	"fmt"

	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for the resolver.
type RepositoryPort interface {
	FindPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// Resolver maps a request principal onto a tenant scope.
type Resolver struct {
	repo RepositoryPort
}

// NewResolver constructs a Resolver.
func NewResolver(repo RepositoryPort) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the tenant scope for userID. Staff accounts resolve to
// their manager's tenant, owners to themselves, super-admins to all
// tenants. A principal that cannot be resolved blocks the request; the
// scope is never silently widened.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (shared.Scope, error) {
	if userID <= 0 {
		return shared.Scope{}, fmt.Errorf("missing principal: %w", shared.ErrPermission)
	}
	p, err := r.repo.FindPrincipal(ctx, userID)
	if err != nil {
		return shared.Scope{}, fmt.Errorf("resolve principal %d: %w", userID, err)
	}
	if !p.IsActive {
		return shared.Scope{}, fmt.Errorf("principal disabled: %w", shared.ErrPermission)
	}
	if p.SuperAdmin {
		return shared.AllTenants(), nil
	}
	if p.ParentID > 0 {
		return shared.OwnerScope(p.ParentID), nil
	}
	return shared.OwnerScope(p.ID), nil
}
