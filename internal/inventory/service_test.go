package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arka-retail/arka/internal/shared"
)

type memoryInventoryRepo struct {
	products  map[int64]*ProductStock
	batches   map[int64]*Batch
	movements []Movement
	syncLogs  []SyncReport
	nextID    int64
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{
		products: make(map[int64]*ProductStock),
		batches:  make(map[int64]*Batch),
		nextID:   1,
	}
}

func (m *memoryInventoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryInventoryRepo) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return fn(m)
}

func (m *memoryInventoryRepo) ListBatches(ctx context.Context, scope shared.Scope, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range m.batches {
		if b.ProductID == productID && scope.Covers(b.OwnerID) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryInventoryRepo) ListMovements(ctx context.Context, scope shared.Scope, productID int64, limit int) ([]Movement, error) {
	var out []Movement
	for _, mv := range m.movements {
		if mv.ProductID == productID && scope.Covers(mv.OwnerID) {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryInventoryRepo) GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error) {
	p, ok := m.products[productID]
	if !ok {
		return ProductStock{}, fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
	}
	return *p, nil
}

func (m *memoryInventoryRepo) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	m.products[productID].Stock = stock
	return nil
}

func (m *memoryInventoryRepo) BatchesForConsume(ctx context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range m.batches {
		if b.ProductID == productID && b.RemainingQty > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := out[i].ExpiryDate, out[j].ExpiryDate
		switch {
		case ei == nil && ej == nil:
		case ei == nil:
			return false
		case ej == nil:
			return true
		case !ei.Equal(*ej):
			return ei.Before(*ej)
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

func (m *memoryInventoryRepo) UpdateBatchRemaining(ctx context.Context, batchID int64, remaining int) error {
	m.batches[batchID].RemainingQty = remaining
	return nil
}

func (m *memoryInventoryRepo) InsertBatch(ctx context.Context, b Batch) (int64, error) {
	b.ID = m.id()
	m.batches[b.ID] = &b
	return b.ID, nil
}

func (m *memoryInventoryRepo) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	mv.ID = m.id()
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryInventoryRepo) ProductIDs(ctx context.Context, ownerID int64) ([]int64, error) {
	var ids []int64
	for id, p := range m.products {
		if p.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryInventoryRepo) SumBatchRemaining(ctx context.Context, productID int64) (int, error) {
	total := 0
	for _, b := range m.batches {
		if b.ProductID == productID {
			total += b.RemainingQty
		}
	}
	return total, nil
}

func (m *memoryInventoryRepo) InsertSyncLog(ctx context.Context, report SyncReport) error {
	m.syncLogs = append(m.syncLogs, report)
	return nil
}

var (
	_ RepositoryPort = (*memoryInventoryRepo)(nil)
	_ TxStore        = (*memoryInventoryRepo)(nil)
)

type noopAudit struct{ logs []shared.AuditLog }

func (n *noopAudit) Record(ctx context.Context, log shared.AuditLog) error {
	n.logs = append(n.logs, log)
	return nil
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newTestService(repo *memoryInventoryRepo) (*Service, *noopAudit) {
	audit := &noopAudit{}
	logger := slog.New(slog.DiscardHandler)
	return NewService(repo, NewEngine(), audit, logger), audit
}

func seedProduct(repo *memoryInventoryRepo, id int64, stock int) {
	repo.products[id] = &ProductStock{ID: id, OwnerID: 7, Name: fmt.Sprintf("product-%d", id), Stock: stock}
}

func seedBatch(repo *memoryInventoryRepo, productID int64, remaining int, expiry *time.Time, receivedAt time.Time) int64 {
	id := repo.id()
	repo.batches[id] = &Batch{
		ID:           id,
		OwnerID:      7,
		ProductID:    productID,
		BatchNumber:  fmt.Sprintf("B-%d", id),
		ReceivedQty:  remaining,
		RemainingQty: remaining,
		ExpiryDate:   expiry,
		ReceivedAt:   receivedAt,
	}
	return id
}

func TestConsumeDrainsOldestExpiryFirst(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 25)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := seedBatch(repo, 1, 10, date("2026-12-01"), base)
	early := seedBatch(repo, 1, 10, date("2026-06-01"), base.Add(time.Hour))
	never := seedBatch(repo, 1, 5, nil, base)

	engine := NewEngine()
	movements, err := engine.Consume(context.Background(), repo, ConsumeInput{
		OwnerID: 7, ProductID: 1, Quantity: 18, RefType: "invoice", RefID: 55, ActorID: 3,
	})
	require.NoError(t, err)

	// 10 from the June batch, 8 from the December batch, untouched no-expiry batch.
	require.Len(t, movements, 2)
	require.Equal(t, early, movements[0].BatchID)
	require.Equal(t, -10, movements[0].Quantity)
	require.Equal(t, late, movements[1].BatchID)
	require.Equal(t, -8, movements[1].Quantity)

	require.Equal(t, 0, repo.batches[early].RemainingQty)
	require.Equal(t, 2, repo.batches[late].RemainingQty)
	require.Equal(t, 5, repo.batches[never].RemainingQty)
	require.Equal(t, 7, repo.products[1].Stock)
}

func TestConsumeLooseStockBeyondBatches(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 12)
	batch := seedBatch(repo, 1, 4, date("2026-06-01"), time.Now())

	movements, err := NewEngine().Consume(context.Background(), repo, ConsumeInput{
		OwnerID: 7, ProductID: 1, Quantity: 10, RefType: "invoice", RefID: 9, ActorID: 3,
	})
	require.NoError(t, err)

	require.Len(t, movements, 2)
	require.Equal(t, batch, movements[0].BatchID)
	require.Equal(t, -4, movements[0].Quantity)
	require.Zero(t, movements[1].BatchID)
	require.Equal(t, -6, movements[1].Quantity)
	require.Equal(t, 2, repo.products[1].Stock)
}

func TestConsumeInsufficientStockMutatesNothing(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 3)
	batch := seedBatch(repo, 1, 3, date("2026-06-01"), time.Now())

	_, err := NewEngine().Consume(context.Background(), repo, ConsumeInput{
		OwnerID: 7, ProductID: 1, Quantity: 5, RefType: "invoice", RefID: 9, ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "product-1", stockErr.ProductName)
	require.Equal(t, 3, stockErr.Available)
	require.Equal(t, 5, stockErr.Requested)

	require.Equal(t, 3, repo.products[1].Stock)
	require.Equal(t, 3, repo.batches[batch].RemainingQty)
	require.Empty(t, repo.movements)
}

func TestConsumeRejectsNonPositiveQuantity(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 3)
	_, err := NewEngine().Consume(context.Background(), repo, ConsumeInput{OwnerID: 7, ProductID: 1, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceiveBatch(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 5)
	svc, audit := newTestService(repo)

	batch, err := svc.ReceiveBatch(context.Background(), shared.OwnerScope(7), ReceiveBatchInput{
		OwnerID:     7,
		ProductID:   1,
		BatchNumber: "LOT-9",
		Quantity:    20,
		UnitCost:    decimal.NewFromInt(12),
		ExpiryDate:  date("2027-01-01"),
		ActorID:     3,
	})
	require.NoError(t, err)
	require.Equal(t, 20, batch.ReceivedQty)
	require.Equal(t, 20, batch.RemainingQty)
	require.Equal(t, 25, repo.products[1].Stock)

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementPurchase, repo.movements[0].Type)
	require.Equal(t, 20, repo.movements[0].Quantity)
	require.Len(t, audit.logs, 1)
}

func TestAdjustStockRejectsBelowZero(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 5)
	svc, _ := newTestService(repo)

	err := svc.AdjustStock(context.Background(), shared.OwnerScope(7), AdjustInput{
		OwnerID: 7, ProductID: 1, Delta: -8, ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 5, repo.products[1].Stock)

	err = svc.AdjustStock(context.Background(), shared.OwnerScope(7), AdjustInput{
		OwnerID: 7, ProductID: 1, Delta: -5, Note: "damage write-off", ActorID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 0, repo.products[1].Stock)
}

func TestReconcileStockRoundTrip(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedProduct(repo, 1, 99) // drifted counter
	seedProduct(repo, 2, 4)  // already correct
	seedBatch(repo, 1, 6, date("2026-06-01"), time.Now())
	seedBatch(repo, 1, 4, nil, time.Now())
	seedBatch(repo, 2, 4, nil, time.Now())
	svc, audit := newTestService(repo)

	report, err := svc.ReconcileStock(context.Background(), shared.OwnerScope(7), 7, 3)
	require.NoError(t, err)
	require.Equal(t, 2, report.Products)
	require.Equal(t, 1, report.Corrected())
	require.Equal(t, Correction{ProductID: 1, OldStock: 99, NewStock: 10}, report.Corrections[0])
	require.Equal(t, 10, repo.products[1].Stock)
	require.Len(t, repo.syncLogs, 1)
	require.Len(t, audit.logs, 1)

	// A second run with no sales in between corrects nothing.
	report, err = svc.ReconcileStock(context.Background(), shared.OwnerScope(7), 7, 3)
	require.NoError(t, err)
	require.Zero(t, report.Corrected())
}

func TestReconcileStockScopeCheck(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc, _ := newTestService(repo)
	_, err := svc.ReconcileStock(context.Background(), shared.OwnerScope(8), 7, 3)
	require.ErrorIs(t, err, shared.ErrPermission)
}
