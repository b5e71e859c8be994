package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for rbac.
type RepositoryPort interface {
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context, scope shared.Scope) ([]Role, error)
	CreateRole(ctx context.Context, ownerID int64, name, description string) (Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	EffectiveCapabilities(ctx context.Context, userID int64) ([]string, error)
	IsSuperAdmin(ctx context.Context, userID int64) (bool, error)
}

// Service orchestrates role and capability management.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns the roles visible inside scope.
func (s *Service) ListRoles(ctx context.Context, scope shared.Scope) ([]Role, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListRoles(ctx, scope)
}

// CreateRole inserts a role owned by the scope's tenant.
func (s *Service) CreateRole(ctx context.Context, scope shared.Scope, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("role name required: %w", shared.ErrValidation)
	}
	if !scope.Valid() || scope.SuperAdmin {
		return Role{}, fmt.Errorf("roles belong to a tenant: %w", shared.ErrValidation)
	}
	return s.repo.CreateRole(ctx, scope.OwnerID, name, strings.TrimSpace(description))
}

// AssignRole attaches a role to a user after a scope check.
func (s *Service) AssignRole(ctx context.Context, scope shared.Scope, userID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := scope.Check(role.OwnerID); err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RemoveRole detaches a role from a user after a scope check.
func (s *Service) RemoveRole(ctx context.Context, scope shared.Scope, userID, roleID int64) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if err := scope.Check(role.OwnerID); err != nil {
		return err
	}
	return s.repo.RemoveRole(ctx, userID, roleID)
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id, name, description, created_at, updated_at
FROM roles WHERE id = $1`, id).Scan(&role.ID, &role.OwnerID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns roles for the scope's tenant, or all for super-admin.
func (r *PGRepository) ListRoles(ctx context.Context, scope shared.Scope) ([]Role, error) {
	query := `SELECT id, owner_id, name, description, created_at, updated_at FROM roles WHERE owner_id = $1 ORDER BY name`
	args := []any{scope.OwnerID}
	if scope.SuperAdmin {
		query = `SELECT id, owner_id, name, description, created_at, updated_at FROM roles ORDER BY owner_id, name`
		args = nil
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.OwnerID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, ownerID int64, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (owner_id, name, description, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
RETURNING id, owner_id, name, description, created_at, updated_at`, ownerID, name, description).
		Scan(&role.ID, &role.OwnerID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// AssignRole links a user to a role.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, created_at)
VALUES ($1, $2, NOW()) ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	return err
}

// RemoveRole unlinks a user from a role.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// EffectiveCapabilities returns deduplicated capability codes for a user.
func (r *PGRepository) EffectiveCapabilities(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT c.code
FROM capabilities c
JOIN role_capabilities rc ON rc.capability_id = c.id
JOIN user_roles ur ON ur.role_id = rc.role_id
WHERE ur.user_id = $1
ORDER BY c.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var caps []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		caps = append(caps, code)
	}
	return caps, rows.Err()
}

// IsSuperAdmin reports whether the user is a platform super-admin.
func (r *PGRepository) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	var super bool
	err := r.pool.QueryRow(ctx, `SELECT is_super_admin FROM users WHERE id = $1`, userID).Scan(&super)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return false, err
	}
	return super, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
