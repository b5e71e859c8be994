package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const ruleColumns = `id, owner_id, name, code, rule_type, value, level, min_order_value,
max_discount_value, valid_from, valid_to, is_active, requires_approval,
created_by, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var r Rule
	var typ, level string
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Code, &typ, &r.Value, &level,
		&r.MinOrderValue, &r.MaxDiscountValue, &r.ValidFrom, &r.ValidTo,
		&r.IsActive, &r.RequiresApproval, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Rule{}, err
	}
	r.Type = RuleType(typ)
	r.Level = Level(level)
	return r, nil
}

// GetRule fetches a rule by ID.
func (r *PGRepository) GetRule(ctx context.Context, id int64) (Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM discount_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, fmt.Errorf("discount rule %d: %w", id, shared.ErrNotFound)
		}
		return Rule{}, err
	}
	return rule, nil
}

// GetRuleByCode fetches a tenant's rule by its code.
func (r *PGRepository) GetRuleByCode(ctx context.Context, ownerID int64, code string) (Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM discount_rules WHERE owner_id = $1 AND code = $2`, ownerID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, fmt.Errorf("discount rule %q: %w", code, shared.ErrNotFound)
		}
		return Rule{}, err
	}
	return rule, nil
}

// ListRules returns the rules visible in scope.
func (r *PGRepository) ListRules(ctx context.Context, scope shared.Scope) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ruleColumns+` FROM discount_rules
WHERE $1 OR owner_id = $2
ORDER BY code`, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateRule inserts a rule. A duplicate code within the tenant maps to
// ErrConflict.
func (r *PGRepository) CreateRule(ctx context.Context, rule Rule) (Rule, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO discount_rules
(owner_id, name, code, rule_type, value, level, min_order_value, max_discount_value,
 valid_from, valid_to, is_active, requires_approval, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		rule.OwnerID, rule.Name, rule.Code, string(rule.Type), rule.Value, string(rule.Level),
		rule.MinOrderValue, rule.MaxDiscountValue, rule.ValidFrom, rule.ValidTo,
		rule.IsActive, rule.RequiresApproval, rule.CreatedBy).
		Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Rule{}, fmt.Errorf("discount code %q already exists: %w", rule.Code, shared.ErrConflict)
		}
		return Rule{}, err
	}
	return rule, nil
}

// UpdateRule updates a rule.
func (r *PGRepository) UpdateRule(ctx context.Context, rule Rule) (Rule, error) {
	err := r.pool.QueryRow(ctx, `UPDATE discount_rules SET
 name = $2, code = $3, rule_type = $4, value = $5, level = $6,
 min_order_value = $7, max_discount_value = $8, valid_from = $9, valid_to = $10,
 is_active = $11, requires_approval = $12, updated_at = NOW()
WHERE id = $1
RETURNING created_by, created_at, updated_at`,
		rule.ID, rule.Name, rule.Code, string(rule.Type), rule.Value, string(rule.Level),
		rule.MinOrderValue, rule.MaxDiscountValue, rule.ValidFrom, rule.ValidTo,
		rule.IsActive, rule.RequiresApproval).
		Scan(&rule.CreatedBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, fmt.Errorf("discount rule %d: %w", rule.ID, shared.ErrNotFound)
		}
		return Rule{}, err
	}
	return rule, nil
}

// ListLogs returns the application trail for an invoice.
func (r *PGRepository) ListLogs(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Log, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, rule_id, invoice_id, amount, applied_by, applied_at
FROM discount_logs
WHERE invoice_id = $1 AND ($2 OR owner_id = $3)
ORDER BY applied_at ASC`, invoiceID, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.RuleID, &l.InvoiceID, &l.Amount, &l.AppliedBy, &l.AppliedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

var _ RepositoryPort = (*PGRepository)(nil)
