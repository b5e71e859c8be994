package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/shared"
)

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindPrincipal fetches the resolver slice of a user record.
func (r *PGRepository) FindPrincipal(ctx context.Context, userID int64) (*Principal, error) {
	var p Principal
	var parentID *int64
	err := r.pool.QueryRow(ctx, `SELECT id, email, is_super_admin, parent_id, is_active
FROM users WHERE id = $1`, userID).Scan(&p.ID, &p.Email, &p.SuperAdmin, &parentID, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return nil, err
	}
	if parentID != nil {
		p.ParentID = *parentID
	}
	return &p, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
