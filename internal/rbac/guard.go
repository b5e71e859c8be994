package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/arka-retail/arka/internal/shared"
)

// Guard answers a single capability question per request. Super-admins pass
// every check; everyone else needs the capability through a role.
type Guard struct {
	repo RepositoryPort
}

// NewGuard constructs a Guard.
func NewGuard(repo RepositoryPort) *Guard {
	return &Guard{repo: repo}
}

// Require evaluates whether userID holds capability. The returned decision
// records what was asked so callers can log it; a denied decision comes
// with an ErrPermission error naming the capability.
func (g *Guard) Require(ctx context.Context, userID int64, capability string) (Decision, error) {
	capability = strings.TrimSpace(strings.ToLower(capability))
	d := Decision{Capability: capability, UserID: userID}
	if capability == "" {
		d.Allowed = true
		return d, nil
	}
	if userID <= 0 {
		return d, fmt.Errorf("capability %s: missing principal: %w", capability, shared.ErrPermission)
	}

	super, err := g.repo.IsSuperAdmin(ctx, userID)
	if err != nil {
		return d, err
	}
	if super {
		d.Allowed = true
		return d, nil
	}

	granted, err := g.repo.EffectiveCapabilities(ctx, userID)
	if err != nil {
		return d, err
	}
	for _, code := range granted {
		if strings.EqualFold(code, capability) {
			d.Allowed = true
			return d, nil
		}
	}
	return d, fmt.Errorf("capability %s: %w", capability, shared.ErrPermission)
}
