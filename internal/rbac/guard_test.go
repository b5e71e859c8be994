package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arka-retail/arka/internal/shared"
)

type memoryRBACRepo struct {
	caps   map[int64][]string
	supers map[int64]bool
	roles  map[int64]Role
}

func (m *memoryRBACRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *memoryRBACRepo) ListRoles(ctx context.Context, scope shared.Scope) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if scope.Covers(role.OwnerID) {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *memoryRBACRepo) CreateRole(ctx context.Context, ownerID int64, name, description string) (Role, error) {
	role := Role{ID: int64(len(m.roles) + 1), OwnerID: ownerID, Name: name, Description: description}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memoryRBACRepo) AssignRole(ctx context.Context, userID, roleID int64) error  { return nil }
func (m *memoryRBACRepo) RemoveRole(ctx context.Context, userID, roleID int64) error { return nil }

func (m *memoryRBACRepo) EffectiveCapabilities(ctx context.Context, userID int64) ([]string, error) {
	return m.caps[userID], nil
}

func (m *memoryRBACRepo) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	return m.supers[userID], nil
}

func newTestGuard() *Guard {
	return NewGuard(&memoryRBACRepo{
		caps: map[int64][]string{
			10: {shared.CapManageInvoices, shared.CapManagePayments},
		},
		supers: map[int64]bool{1: true},
		roles:  map[int64]Role{},
	})
}

func TestGuardAllowsGrantedCapability(t *testing.T) {
	d, err := newTestGuard().Require(context.Background(), 10, shared.CapManageInvoices)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, shared.CapManageInvoices, d.Capability)
}

func TestGuardDeniesMissingCapability(t *testing.T) {
	d, err := newTestGuard().Require(context.Background(), 10, shared.CapManageInventory)
	require.ErrorIs(t, err, shared.ErrPermission)
	require.False(t, d.Allowed)
}

func TestGuardSuperAdminPassesEverything(t *testing.T) {
	d, err := newTestGuard().Require(context.Background(), 1, shared.CapManageSettings)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestGuardRejectsAnonymous(t *testing.T) {
	_, err := newTestGuard().Require(context.Background(), 0, shared.CapManageInvoices)
	require.ErrorIs(t, err, shared.ErrPermission)
}
