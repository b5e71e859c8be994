package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for company profiles.
type RepositoryPort interface {
	GetProfile(ctx context.Context, ownerID int64) (Profile, error)
	SaveProfile(ctx context.Context, p Profile) (Profile, error)
	CodeTaken(ctx context.Context, code string, exceptOwnerID int64) (bool, error)
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetProfile fetches the tenant's company profile.
func (r *PGRepository) GetProfile(ctx context.Context, ownerID int64) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `SELECT owner_id, name, code, gstin, state, address, phone, email,
round_off_total, created_at, updated_at
FROM company_profiles WHERE owner_id = $1`, ownerID).Scan(
		&p.OwnerID, &p.Name, &p.Code, &p.GSTIN, &p.State, &p.Address, &p.Phone, &p.Email,
		&p.Billing.RoundOffTotal, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, fmt.Errorf("company profile for owner %d: %w", ownerID, shared.ErrNotFound)
		}
		return Profile{}, err
	}
	return p, nil
}

// SaveProfile upserts the tenant's company profile.
func (r *PGRepository) SaveProfile(ctx context.Context, p Profile) (Profile, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO company_profiles
(owner_id, name, code, gstin, state, address, phone, email, round_off_total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
ON CONFLICT (owner_id) DO UPDATE SET
 name = EXCLUDED.name,
 code = EXCLUDED.code,
 gstin = EXCLUDED.gstin,
 state = EXCLUDED.state,
 address = EXCLUDED.address,
 phone = EXCLUDED.phone,
 email = EXCLUDED.email,
 round_off_total = EXCLUDED.round_off_total,
 updated_at = NOW()
RETURNING created_at, updated_at`,
		p.OwnerID, p.Name, p.Code, p.GSTIN, p.State, p.Address, p.Phone, p.Email, p.Billing.RoundOffTotal).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// CodeTaken reports whether another tenant already uses code.
func (r *PGRepository) CodeTaken(ctx context.Context, code string, exceptOwnerID int64) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM company_profiles WHERE code = $1 AND owner_id <> $2)`, code, exceptOwnerID).Scan(&taken)
	return taken, err
}

var _ RepositoryPort = (*PGRepository)(nil)
