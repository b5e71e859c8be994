package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/discount"
	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/platform/db"
	"github.com/arka-retail/arka/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn against a transactional repository view.
func (r *PGRepository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTxRepository{tx: tx})
	})
}

const invoiceColumns = `id, number, owner_id, customer_id, company_snapshot, mode,
subtotal, discount_percent, discount_amount, tax_rate, cgst, sgst, igst, total,
paid_amount, payment_status, status, notes, invoice_date, due_date,
created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var snapshot []byte
	var mode, payStatus, status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.OwnerID, &inv.CustomerID, &snapshot, &mode,
		&inv.Subtotal, &inv.DiscountPercent, &inv.DiscountAmount, &inv.TaxRate,
		&inv.CGST, &inv.SGST, &inv.IGST, &inv.Total,
		&inv.Paid, &payStatus, &status, &inv.Notes, &inv.InvoiceDate, &inv.DueDate,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &inv.Company); err != nil {
			return nil, fmt.Errorf("decode company snapshot for invoice %d: %w", inv.ID, err)
		}
	}
	inv.Mode = BillingMode(mode)
	inv.PaymentStatus = PaymentStatus(payStatus)
	inv.Status = InvoiceStatus(status)
	return &inv, nil
}

// GetInvoice fetches an invoice with its items.
func (r *PGRepository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	inv.Items, err = queryItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns a page of invoices inside scope, newest first.
func (r *PGRepository) ListInvoices(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}

	where := `($1 OR owner_id = $2)
  AND ($3 = '' OR status = $3)
  AND ($4 = '' OR payment_status = $4)
  AND ($5 = 0 OR customer_id = $5)`
	args := []any{scope.SuperAdmin, scope.OwnerID, string(filter.Status), string(filter.PaymentStatus), filter.CustomerID}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE `+where+`
ORDER BY invoice_date DESC, id DESC
LIMIT $6 OFFSET $7`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

// GetReturn fetches a return with its items.
func (r *PGRepository) GetReturn(ctx context.Context, id int64) (*Return, error) {
	return queryReturn(ctx, r.pool, `SELECT `+returnColumns+` FROM invoice_returns WHERE id = $1`, id)
}

// ListReturns returns the returns filed against an invoice.
func (r *PGRepository) ListReturns(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+returnColumns+` FROM invoice_returns
WHERE invoice_id = $1 AND ($2 OR owner_id = $3)
ORDER BY created_at ASC`, invoiceID, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []Return
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, *ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range returns {
		returns[i].Items, err = queryReturnItems(ctx, r.pool, returns[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return returns, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryItems(ctx context.Context, q querier, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, product_id, product_name, quantity,
unit_price, discount_percent, discount_amount, tax_rate, tax_amount, line_total
FROM invoice_items WHERE invoice_id = $1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName, &it.Quantity,
			&it.UnitPrice, &it.DiscountPercent, &it.DiscountAmount, &it.TaxRate, &it.TaxAmount, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const returnColumns = `id, owner_id, invoice_id, number, reason, status, refund_amount,
created_by, created_at, updated_at`

func scanReturn(row pgx.Row) (*Return, error) {
	var ret Return
	var status string
	err := row.Scan(&ret.ID, &ret.OwnerID, &ret.InvoiceID, &ret.Number, &ret.Reason, &status,
		&ret.RefundAmount, &ret.CreatedBy, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ret.Status = ReturnStatus(status)
	return &ret, nil
}

func queryReturn(ctx context.Context, q querier, sql string, args ...any) (*Return, error) {
	ret, err := scanReturn(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice return: %w", shared.ErrNotFound)
		}
		return nil, err
	}
	ret.Items, err = queryReturnItems(ctx, q, ret.ID)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func queryReturnItems(ctx context.Context, q querier, returnID int64) ([]ReturnItem, error) {
	rows, err := q.Query(ctx, `SELECT id, return_id, product_id, quantity
FROM invoice_return_items WHERE return_id = $1 ORDER BY id ASC`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReturnItem
	for rows.Next() {
		var it ReturnItem
		if err := rows.Scan(&it.ID, &it.ReturnID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// pgTxRepository is the transactional view over a pgx.Tx.
type pgTxRepository struct {
	tx pgx.Tx
}

// LockInvoiceCounter reads the tenant counter row under FOR UPDATE.
func (r *pgTxRepository) LockInvoiceCounter(ctx context.Context, ownerID int64) (int64, bool, error) {
	var next int64
	err := r.tx.QueryRow(ctx,
		`SELECT next_number FROM invoice_counters WHERE owner_id = $1 FOR UPDATE`, ownerID).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return next, true, nil
}

// SaveInvoiceCounter upserts the tenant counter row.
func (r *pgTxRepository) SaveInvoiceCounter(ctx context.Context, ownerID, next int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO invoice_counters (owner_id, next_number, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (owner_id) DO UPDATE SET next_number = EXCLUDED.next_number, updated_at = NOW()`,
		ownerID, next)
	return err
}

// LatestInvoiceNumber finds the most recent invoice number under prefix.
func (r *pgTxRepository) LatestInvoiceNumber(ctx context.Context, ownerID int64, prefix string) (string, bool, error) {
	var number string
	err := r.tx.QueryRow(ctx, `SELECT number FROM invoices
WHERE owner_id = $1 AND number LIKE $2 || '%'
ORDER BY id DESC LIMIT 1`, ownerID, prefix).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return number, true, nil
}

// InsertInvoice stores the invoice header. A duplicate number within the
// tenant maps to ErrConflict so the caller can retry allocation.
func (r *pgTxRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	snapshot, err := json.Marshal(inv.Company)
	if err != nil {
		return fmt.Errorf("encode company snapshot: %w", err)
	}
	err = r.tx.QueryRow(ctx, `INSERT INTO invoices
(number, owner_id, customer_id, company_snapshot, mode, subtotal, discount_percent,
 discount_amount, tax_rate, cgst, sgst, igst, total, paid_amount, payment_status,
 status, notes, invoice_date, due_date, created_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		inv.Number, inv.OwnerID, inv.CustomerID, snapshot, string(inv.Mode),
		inv.Subtotal, inv.DiscountPercent, inv.DiscountAmount, inv.TaxRate,
		inv.CGST, inv.SGST, inv.IGST, inv.Total, inv.Paid, string(inv.PaymentStatus),
		string(inv.Status), inv.Notes, inv.InvoiceDate, inv.DueDate, inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("invoice number %s already taken: %w", inv.Number, shared.ErrConflict)
		}
		return err
	}
	return nil
}

// InsertItems stores invoice lines, filling their generated IDs.
func (r *pgTxRepository) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i := range items {
		items[i].InvoiceID = invoiceID
		err := r.tx.QueryRow(ctx, `INSERT INTO invoice_items
(invoice_id, product_id, product_name, quantity, unit_price, discount_percent,
 discount_amount, tax_rate, tax_amount, line_total)
VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
			invoiceID, items[i].ProductID, items[i].ProductName, items[i].Quantity,
			items[i].UnitPrice, items[i].DiscountPercent, items[i].DiscountAmount,
			items[i].TaxRate, items[i].TaxAmount, items[i].LineTotal).
			Scan(&items[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetInvoiceForUpdate locks the invoice row and loads its items.
func (r *pgTxRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	inv.Items, err = queryItems(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetItems loads the lines of an invoice.
func (r *pgTxRepository) GetItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	return queryItems(ctx, r.tx, invoiceID)
}

// UpdateInvoiceTotals rewrites the derived amounts of an invoice.
func (r *pgTxRepository) UpdateInvoiceTotals(ctx context.Context, inv *Invoice) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET
 subtotal = $2, discount_percent = $3, discount_amount = $4, tax_rate = $5,
 cgst = $6, sgst = $7, igst = $8, total = $9, paid_amount = $10,
 payment_status = $11, updated_at = NOW()
WHERE id = $1`,
		inv.ID, inv.Subtotal, inv.DiscountPercent, inv.DiscountAmount, inv.TaxRate,
		inv.CGST, inv.SGST, inv.IGST, inv.Total, inv.Paid, string(inv.PaymentStatus))
	return err
}

// UpdateInvoiceStatus transitions the invoice lifecycle state.
func (r *pgTxRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

// InsertDiscountLog records a rule application against an invoice.
func (r *pgTxRepository) InsertDiscountLog(ctx context.Context, log discount.Log) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO discount_logs
(owner_id, rule_id, invoice_id, amount, applied_by, applied_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		log.OwnerID, log.RuleID, log.InvoiceID, log.Amount, log.AppliedBy, log.AppliedAt)
	return err
}

// InsertReturn stores a return header and its items.
func (r *pgTxRepository) InsertReturn(ctx context.Context, ret *Return) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_returns
(owner_id, invoice_id, number, reason, status, refund_amount, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		ret.OwnerID, ret.InvoiceID, ret.Number, ret.Reason, string(ret.Status),
		ret.RefundAmount, ret.CreatedBy).
		Scan(&ret.ID, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range ret.Items {
		ret.Items[i].ReturnID = ret.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO invoice_return_items (return_id, product_id, quantity)
VALUES ($1, $2, $3) RETURNING id`,
			ret.ID, ret.Items[i].ProductID, ret.Items[i].Quantity).
			Scan(&ret.Items[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetReturnForUpdate locks the return row and loads its items.
func (r *pgTxRepository) GetReturnForUpdate(ctx context.Context, id int64) (*Return, error) {
	return queryReturn(ctx, r.tx,
		`SELECT `+returnColumns+` FROM invoice_returns WHERE id = $1 FOR UPDATE`, id)
}

// UpdateReturnStatus transitions the return ladder.
func (r *pgTxRepository) UpdateReturnStatus(ctx context.Context, id int64, status ReturnStatus) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE invoice_returns SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return err
}

// Inventory exposes the same transaction as an inventory store so line
// consumption commits or rolls back with the invoice.
func (r *pgTxRepository) Inventory() inventory.TxStore {
	return inventory.NewTxStore(r.tx)
}

var _ Repository = (*PGRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)
