package inventory

import (
	"context"
	"fmt"

	"github.com/arka-retail/arka/internal/shared"
)

// TxStore is the in-transaction view of inventory storage. Both the pgx
// transaction wrapper and the test fakes implement it; every method runs
// under the caller's transaction so a failure rolls the whole scope back.
type TxStore interface {
	GetProductForUpdate(ctx context.Context, productID int64) (ProductStock, error)
	UpdateProductStock(ctx context.Context, productID int64, stock int) error
	BatchesForConsume(ctx context.Context, productID int64) ([]Batch, error)
	UpdateBatchRemaining(ctx context.Context, batchID int64, remaining int) error
	InsertBatch(ctx context.Context, b Batch) (int64, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	ProductIDs(ctx context.Context, ownerID int64) ([]int64, error)
	SumBatchRemaining(ctx context.Context, productID int64) (int, error)
	InsertSyncLog(ctx context.Context, report SyncReport) error
}

// ConsumeInput is one fulfilment request against a product.
type ConsumeInput struct {
	OwnerID   int64
	ProductID int64
	Quantity  int
	RefType   string
	RefID     int64
	ActorID   int64
}

// Engine walks batches oldest-expiry first and writes the movement ledger.
// It holds no state of its own; callers supply the transaction scope.
type Engine struct{}

// NewEngine constructs an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Consume deducts in.Quantity from the product inside the caller's
// transaction. The aggregate counter is checked before anything is touched;
// a shortfall aborts with InsufficientStockError and no mutation. Batches
// with stock remaining are drained in expiry order (unexpiring batches
// last, ties broken by receipt time); any residual beyond batch coverage is
// recorded as a single loose-stock movement with no batch reference.
func (e *Engine) Consume(ctx context.Context, tx TxStore, in ConsumeInput) ([]Movement, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("consume quantity must be positive, got %d: %w", in.Quantity, shared.ErrValidation)
	}

	product, err := tx.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Stock < in.Quantity {
		return nil, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   in.Quantity,
		}
	}

	batches, err := tx.BatchesForConsume(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	var movements []Movement
	needed := in.Quantity
	for _, batch := range batches {
		if needed == 0 {
			break
		}
		take := batch.RemainingQty
		if take > needed {
			take = needed
		}
		if err := tx.UpdateBatchRemaining(ctx, batch.ID, batch.RemainingQty-take); err != nil {
			return nil, err
		}
		m := Movement{
			OwnerID:   in.OwnerID,
			ProductID: in.ProductID,
			BatchID:   batch.ID,
			Type:      MovementSale,
			Quantity:  -take,
			RefType:   in.RefType,
			RefID:     in.RefID,
			CreatedBy: in.ActorID,
		}
		id, err := tx.InsertMovement(ctx, m)
		if err != nil {
			return nil, err
		}
		m.ID = id
		movements = append(movements, m)
		needed -= take
	}

	if needed > 0 {
		m := Movement{
			OwnerID:   in.OwnerID,
			ProductID: in.ProductID,
			Type:      MovementSale,
			Quantity:  -needed,
			RefType:   in.RefType,
			RefID:     in.RefID,
			Note:      "loose stock outside batch tracking",
			CreatedBy: in.ActorID,
		}
		id, err := tx.InsertMovement(ctx, m)
		if err != nil {
			return nil, err
		}
		m.ID = id
		movements = append(movements, m)
	}

	if err := tx.UpdateProductStock(ctx, in.ProductID, product.Stock-in.Quantity); err != nil {
		return nil, err
	}
	return movements, nil
}
