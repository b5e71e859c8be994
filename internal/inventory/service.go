package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for the inventory service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
	ListBatches(ctx context.Context, scope shared.Scope, productID int64) ([]Batch, error)
	ListMovements(ctx context.Context, scope shared.Scope, productID int64, limit int) ([]Movement, error)
}

// AuditPort records engine mutations outside the transaction scope.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates inventory operations around the engine.
type Service struct {
	repo   RepositoryPort
	engine *Engine
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, engine *Engine, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, audit: audit, logger: logger}
}

// Engine exposes the consumption engine for the billing transaction.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Repo exposes the repository for cross-service transaction composition.
func (s *Service) Repo() RepositoryPort {
	return s.repo
}

// ReceiveBatchInput describes an intake from a purchase.
type ReceiveBatchInput struct {
	OwnerID         int64
	ProductID       int64
	BatchNumber     string
	Quantity        int
	UnitCost        decimal.Decimal
	ManufactureDate *time.Time
	ExpiryDate      *time.Time
	PurchaseRef     string
	ActorID         int64
}

// ReceiveBatch records an incoming lot: a batch row with remaining equal to
// received, a positive purchase movement, and a bumped aggregate counter.
func (s *Service) ReceiveBatch(ctx context.Context, scope shared.Scope, in ReceiveBatchInput) (Batch, error) {
	if err := scope.Check(in.OwnerID); err != nil {
		return Batch{}, err
	}
	if in.Quantity <= 0 {
		return Batch{}, fmt.Errorf("batch quantity must be positive, got %d: %w", in.Quantity, shared.ErrValidation)
	}
	in.BatchNumber = strings.TrimSpace(in.BatchNumber)
	if in.BatchNumber == "" {
		return Batch{}, fmt.Errorf("batch number required: %w", shared.ErrValidation)
	}
	if in.ManufactureDate != nil && in.ExpiryDate != nil && in.ExpiryDate.Before(*in.ManufactureDate) {
		return Batch{}, fmt.Errorf("expiry before manufacture date: %w", shared.ErrValidation)
	}

	if in.UnitCost.IsNegative() {
		return Batch{}, fmt.Errorf("unit cost must not be negative: %w", shared.ErrValidation)
	}

	batch := Batch{
		OwnerID:         in.OwnerID,
		ProductID:       in.ProductID,
		BatchNumber:     in.BatchNumber,
		ReceivedQty:     in.Quantity,
		RemainingQty:    in.Quantity,
		UnitCost:        in.UnitCost,
		ManufactureDate: in.ManufactureDate,
		ExpiryDate:      in.ExpiryDate,
		PurchaseRef:     in.PurchaseRef,
		ReceivedAt:      time.Now().UTC(),
	}

	err := s.repo.WithTx(ctx, func(tx TxStore) error {
		product, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		id, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		batch.ID = id
		if _, err := tx.InsertMovement(ctx, Movement{
			OwnerID:   in.OwnerID,
			ProductID: in.ProductID,
			BatchID:   id,
			Type:      MovementPurchase,
			Quantity:  in.Quantity,
			RefType:   "purchase",
			Note:      in.PurchaseRef,
			CreatedBy: in.ActorID,
		}); err != nil {
			return err
		}
		return tx.UpdateProductStock(ctx, in.ProductID, product.Stock+in.Quantity)
	})
	if err != nil {
		return Batch{}, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  in.OwnerID,
		ActorID:  in.ActorID,
		Action:   "inventory.batch_received",
		Entity:   "batch",
		EntityID: strconv.FormatInt(batch.ID, 10),
		Meta:     map[string]any{"product_id": in.ProductID, "quantity": in.Quantity},
	})
	return batch, nil
}

// AdjustInput describes a manual stock correction.
type AdjustInput struct {
	OwnerID   int64
	ProductID int64
	Delta     int
	Note      string
	ActorID   int64
}

// AdjustStock applies a signed manual correction to the aggregate counter
// with an adjustment movement. A negative delta cannot take stock below
// zero.
func (s *Service) AdjustStock(ctx context.Context, scope shared.Scope, in AdjustInput) error {
	if err := scope.Check(in.OwnerID); err != nil {
		return err
	}
	if in.Delta == 0 {
		return fmt.Errorf("adjustment delta must be non-zero: %w", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(tx TxStore) error {
		product, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		next := product.Stock + in.Delta
		if next < 0 {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   -in.Delta,
			}
		}
		if _, err := tx.InsertMovement(ctx, Movement{
			OwnerID:   in.OwnerID,
			ProductID: in.ProductID,
			Type:      MovementAdjustment,
			Quantity:  in.Delta,
			RefType:   "adjustment",
			Note:      in.Note,
			CreatedBy: in.ActorID,
		}); err != nil {
			return err
		}
		return tx.UpdateProductStock(ctx, in.ProductID, next)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  in.OwnerID,
		ActorID:  in.ActorID,
		Action:   "inventory.adjusted",
		Entity:   "product",
		EntityID: strconv.FormatInt(in.ProductID, 10),
		Meta:     map[string]any{"delta": in.Delta, "note": in.Note},
	})
	return nil
}

// ReconcileStock recomputes every aggregate counter in scope from the sum
// of batch remainders, correcting drift and logging each correction. A
// second run with no sales in between reports zero corrections.
func (s *Service) ReconcileStock(ctx context.Context, scope shared.Scope, ownerID, actorID int64) (SyncReport, error) {
	if err := scope.Check(ownerID); err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{OwnerID: ownerID, StartedAt: time.Now().UTC()}
	err := s.repo.WithTx(ctx, func(tx TxStore) error {
		ids, err := tx.ProductIDs(ctx, ownerID)
		if err != nil {
			return err
		}
		report.Products = len(ids)
		for _, productID := range ids {
			product, err := tx.GetProductForUpdate(ctx, productID)
			if err != nil {
				return err
			}
			expected, err := tx.SumBatchRemaining(ctx, productID)
			if err != nil {
				return err
			}
			if expected == product.Stock {
				continue
			}
			if _, err := tx.InsertMovement(ctx, Movement{
				OwnerID:   ownerID,
				ProductID: productID,
				Type:      MovementSync,
				Quantity:  expected - product.Stock,
				RefType:   "stock_sync",
				CreatedBy: actorID,
			}); err != nil {
				return err
			}
			if err := tx.UpdateProductStock(ctx, productID, expected); err != nil {
				return err
			}
			report.Corrections = append(report.Corrections, Correction{
				ProductID: productID,
				OldStock:  product.Stock,
				NewStock:  expected,
			})
		}
		report.FinishedAt = time.Now().UTC()
		return tx.InsertSyncLog(ctx, report)
	})
	if err != nil {
		return SyncReport{}, err
	}

	for _, c := range report.Corrections {
		s.recordAudit(ctx, shared.AuditLog{
			OwnerID:  ownerID,
			ActorID:  actorID,
			Action:   "inventory.stock_corrected",
			Entity:   "product",
			EntityID: strconv.FormatInt(c.ProductID, 10),
			Meta:     map[string]any{"old_stock": c.OldStock, "new_stock": c.NewStock},
		})
	}
	return report, nil
}

// ListBatches returns the batches of a product inside scope.
func (s *Service) ListBatches(ctx context.Context, scope shared.Scope, productID int64) ([]Batch, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListBatches(ctx, scope, productID)
}

// ListMovements returns recent ledger entries for a product inside scope.
func (s *Service) ListMovements(ctx context.Context, scope shared.Scope, productID int64, limit int) ([]Movement, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListMovements(ctx, scope, productID, limit)
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record audit log", slog.Any("error", err), slog.String("action", log.Action))
	}
}
