package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for master data.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Product, int, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)

	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Customer, int, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const productColumns = `id, owner_id, code, barcode, name, unit, cost_price, unit_price,
tax_rate, reorder_level, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OwnerID, &p.Code, &p.Barcode, &p.Name, &p.Unit,
		&p.CostPrice, &p.UnitPrice, &p.TaxRate, &p.ReorderLevel, &p.Stock,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProduct fetches a product by ID.
func (r *PGRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// ListProducts returns a page of products visible in scope.
func (r *PGRepository) ListProducts(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Product, int, error) {
	where := `WHERE owner_id = $1`
	args := []any{scope.OwnerID}
	if scope.SuperAdmin {
		where = ``
		args = nil
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page.Page - 1) * page.PerPage
	args = append(args, page.PerPage, offset)
	limitPos := len(args) - 1
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY name LIMIT $%d OFFSET $%d`,
		productColumns, where, limitPos, limitPos+1)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// CreateProduct inserts a product.
func (r *PGRepository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products
(owner_id, code, barcode, name, unit, cost_price, unit_price, tax_rate, reorder_level, stock, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Code, p.Barcode, p.Name, p.Unit, p.CostPrice, p.UnitPrice,
		p.TaxRate, p.ReorderLevel, p.Stock, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// UpdateProduct updates product fields other than the stock counter, which
// only the inventory engine touches.
func (r *PGRepository) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `UPDATE products SET
 code = $2, barcode = $3, name = $4, unit = $5, cost_price = $6, unit_price = $7,
 tax_rate = $8, reorder_level = $9, is_active = $10, updated_at = NOW()
WHERE id = $1
RETURNING stock, created_at, updated_at`,
		p.ID, p.Code, p.Barcode, p.Name, p.Unit, p.CostPrice, p.UnitPrice,
		p.TaxRate, p.ReorderLevel, p.IsActive).
		Scan(&p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product %d: %w", p.ID, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

const customerColumns = `id, owner_id, name, phone, email, state, address, gstin, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.State,
		&c.Address, &c.GSTIN, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCustomer fetches a customer by ID.
func (r *PGRepository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
		}
		return Customer{}, err
	}
	return c, nil
}

// ListCustomers returns a page of customers visible in scope.
func (r *PGRepository) ListCustomers(ctx context.Context, scope shared.Scope, page shared.Pagination) ([]Customer, int, error) {
	where := `WHERE owner_id = $1`
	args := []any{scope.OwnerID}
	if scope.SuperAdmin {
		where = ``
		args = nil
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page.Page - 1) * page.PerPage
	args = append(args, page.PerPage, offset)
	limitPos := len(args) - 1
	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY name LIMIT $%d OFFSET $%d`,
		customerColumns, where, limitPos, limitPos+1)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

// CreateCustomer inserts a customer.
func (r *PGRepository) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO customers
(owner_id, name, phone, email, state, address, gstin, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		c.OwnerID, c.Name, c.Phone, c.Email, c.State, c.Address, c.GSTIN, c.IsActive).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

var _ RepositoryPort = (*PGRepository)(nil)
