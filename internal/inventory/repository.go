package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arka-retail/arka/internal/platform/db"
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

// WithTx runs fn inside a RepeatableRead transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTxStore{tx: tx})
	})
}

// ListBatches returns batches of a product, drained first in consume order.
func (r *PGRepository) ListBatches(ctx context.Context, scope shared.Scope, productID int64) ([]Batch, error) {
	query := `SELECT id, owner_id, product_id, batch_number, received_qty, remaining_qty,
unit_cost, manufacture_date, expiry_date, purchase_ref, received_at
FROM inventory_batches
WHERE product_id = $1 AND ($2 OR owner_id = $3)
ORDER BY expiry_date ASC NULLS LAST, received_at ASC`
	rows, err := r.pool.Query(ctx, query, productID, scope.SuperAdmin, scope.OwnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

// ListMovements returns recent ledger entries for a product, newest first.
func (r *PGRepository) ListMovements(ctx context.Context, scope shared.Scope, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, product_id, COALESCE(batch_id, 0),
movement_type, quantity, ref_type, COALESCE(ref_id, 0), note, created_by, created_at
FROM inventory_movements
WHERE product_id = $1 AND ($2 OR owner_id = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, productID, scope.SuperAdmin, scope.OwnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.ProductID, &m.BatchID, &typ, &m.Quantity,
			&m.RefType, &m.RefID, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

var _ RepositoryPort = (*PGRepository)(nil)

// pgTxStore implements TxStore over one pgx transaction.
type pgTxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an existing transaction so other services can compose
// inventory work into their own transactional scope.
func NewTxStore(tx pgx.Tx) TxStore {
	return &pgTxStore{tx: tx}
}

func (s *pgTxStore) GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	var p ProductStock
	err := s.tx.QueryRow(ctx, `SELECT id, owner_id, name, stock FROM products
WHERE id = $1 FOR UPDATE`, productID).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductStock{}, fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
		}
		return ProductStock{}, err
	}
	return p, nil
}

func (s *pgTxStore) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	_, err := s.tx.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`,
		productID, stock)
	return err
}

func (s *pgTxStore) BatchesForConsume(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, owner_id, product_id, batch_number, received_qty,
remaining_qty, unit_cost, manufacture_date, expiry_date, purchase_ref, received_at
FROM inventory_batches
WHERE product_id = $1 AND remaining_qty > 0
ORDER BY expiry_date ASC NULLS LAST, received_at ASC
FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatches(rows)
}

func (s *pgTxStore) UpdateBatchRemaining(ctx context.Context, batchID int64, remaining int) error {
	_, err := s.tx.Exec(ctx, `UPDATE inventory_batches SET remaining_qty = $2 WHERE id = $1`,
		batchID, remaining)
	return err
}

func (s *pgTxStore) InsertBatch(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_batches
(owner_id, product_id, batch_number, received_qty, remaining_qty, unit_cost,
 manufacture_date, expiry_date, purchase_ref, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		b.OwnerID, b.ProductID, b.BatchNumber, b.ReceivedQty, b.RemainingQty, b.UnitCost,
		b.ManufactureDate, b.ExpiryDate, b.PurchaseRef, b.ReceivedAt).Scan(&id)
	return id, err
}

func (s *pgTxStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var batchID any
	if m.BatchID > 0 {
		batchID = m.BatchID
	}
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_movements
(owner_id, product_id, batch_id, movement_type, quantity, ref_type, ref_id, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), $8, $9, NOW())
RETURNING id`,
		m.OwnerID, m.ProductID, batchID, string(m.Type), m.Quantity,
		m.RefType, m.RefID, m.Note, m.CreatedBy).Scan(&id)
	return id, err
}

func (s *pgTxStore) ProductIDs(ctx context.Context, ownerID int64) ([]int64, error) {
	rows, err := s.tx.Query(ctx, `SELECT id FROM products WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *pgTxStore) SumBatchRemaining(ctx context.Context, productID int64) (int, error) {
	var total int
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(remaining_qty), 0)
FROM inventory_batches WHERE product_id = $1`, productID).Scan(&total)
	return total, err
}

func (s *pgTxStore) InsertSyncLog(ctx context.Context, report SyncReport) error {
	corrections, err := json.Marshal(report.Corrections)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, `INSERT INTO stock_sync_logs
(owner_id, products_checked, products_corrected, corrections, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		report.OwnerID, report.Products, report.Corrected(), corrections,
		report.StartedAt, report.FinishedAt)
	return err
}

var _ TxStore = (*pgTxStore)(nil)

func scanBatches(rows pgx.Rows) ([]Batch, error) {
	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.ProductID, &b.BatchNumber, &b.ReceivedQty,
			&b.RemainingQty, &b.UnitCost, &b.ManufactureDate, &b.ExpiryDate,
			&b.PurchaseRef, &b.ReceivedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
