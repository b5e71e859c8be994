package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/billing"
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

const paymentColumns = `id, owner_id, invoice_id, number, amount, method, gateway_ref,
status, notes, created_by, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var method, status string
	err := row.Scan(&p.ID, &p.OwnerID, &p.InvoiceID, &p.Number, &p.Amount, &method,
		&p.GatewayRef, &status, &p.Notes, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Method = Method(method)
	p.Status = Status(status)
	return &p, nil
}

// GetPayment fetches a payment by ID.
func (r *PGRepository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// ListPayments returns the payments against an invoice inside scope.
func (r *PGRepository) ListPayments(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE invoice_id = $1 AND ($2 OR owner_id = $3)
ORDER BY created_at ASC`, invoiceID, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// ListRefunds returns the refunds against a payment inside scope.
func (r *PGRepository) ListRefunds(ctx context.Context, scope shared.Scope, paymentID int64) ([]Refund, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, payment_id, invoice_id, number, amount, reason, created_by, created_at
FROM refunds
WHERE payment_id = $1 AND ($2 OR owner_id = $3)
ORDER BY created_at ASC`, paymentID, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refunds []Refund
	for rows.Next() {
		var rf Refund
		if err := rows.Scan(&rf.ID, &rf.OwnerID, &rf.PaymentID, &rf.InvoiceID, &rf.Number,
			&rf.Amount, &rf.Reason, &rf.CreatedBy, &rf.CreatedAt); err != nil {
			return nil, err
		}
		refunds = append(refunds, rf)
	}
	return refunds, rows.Err()
}

// pgTxRepository is the transactional view over a pgx.Tx.
type pgTxRepository struct {
	tx pgx.Tx
}

// GetInvoiceAccountForUpdate locks the invoice row's settlement slice.
func (r *pgTxRepository) GetInvoiceAccountForUpdate(ctx context.Context, invoiceID int64) (InvoiceAccount, error) {
	var account InvoiceAccount
	var status string
	err := r.tx.QueryRow(ctx, `SELECT id, owner_id, status, total, paid_amount
FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID).
		Scan(&account.ID, &account.OwnerID, &status, &account.Total, &account.Paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceAccount{}, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
		}
		return InvoiceAccount{}, err
	}
	account.Status = billing.InvoiceStatus(status)
	return account, nil
}

// UpdateInvoicePaid rewrites the invoice's settlement columns.
func (r *pgTxRepository) UpdateInvoicePaid(ctx context.Context, invoiceID int64, paid decimal.Decimal, status billing.PaymentStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount = $2, payment_status = $3, updated_at = NOW()
WHERE id = $1`, invoiceID, paid, string(status))
	return err
}

// InsertPayment stores a payment row.
func (r *pgTxRepository) InsertPayment(ctx context.Context, p *Payment) error {
	return r.tx.QueryRow(ctx, `INSERT INTO payments
(owner_id, invoice_id, number, amount, method, gateway_ref, status, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
RETURNING id, created_at`,
		p.OwnerID, p.InvoiceID, p.Number, p.Amount, string(p.Method), p.GatewayRef,
		string(p.Status), p.Notes, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt)
}

// GetPaymentForUpdate locks a payment row.
func (r *pgTxRepository) GetPaymentForUpdate(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// UpdatePaymentStatus transitions a payment.
func (r *pgTxRepository) UpdatePaymentStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1`, id, string(status))
	return err
}

// InsertRefund stores a refund row.
func (r *pgTxRepository) InsertRefund(ctx context.Context, rf *Refund) error {
	return r.tx.QueryRow(ctx, `INSERT INTO refunds
(owner_id, payment_id, invoice_id, number, amount, reason, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
RETURNING id, created_at`,
		rf.OwnerID, rf.PaymentID, rf.InvoiceID, rf.Number, rf.Amount, rf.Reason, rf.CreatedBy).
		Scan(&rf.ID, &rf.CreatedAt)
}

var _ Repository = (*PGRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)
