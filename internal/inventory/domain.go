// Package inventory owns batch-level stock, the movement ledger, and the
// consumption engine that fulfils invoice lines oldest-expiry first.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/shared"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	// MovementPurchase records batch intake.
	MovementPurchase MovementType = "purchase"
	// MovementSale records consumption by an invoice.
	MovementSale MovementType = "sale"
	// MovementAdjustment records a manual correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementReturn records returned goods.
	MovementReturn MovementType = "return"
	// MovementSync records a reconciliation correction.
	MovementSync MovementType = "sync"
)

// Batch is a received lot of one product. RemainingQty only ever moves
// down through the engine; ReceivedQty is fixed at intake.
type Batch struct {
	ID              int64
	OwnerID         int64
	ProductID       int64
	BatchNumber     string
	ReceivedQty     int
	RemainingQty    int
	UnitCost        decimal.Decimal
	ManufactureDate *time.Time
	ExpiryDate      *time.Time
	PurchaseRef     string
	ReceivedAt      time.Time
}

// Movement is one row of the append-only stock ledger. Negative quantities
// are outflows. BatchID is zero for loose-stock movements that could not be
// attributed to any batch.
type Movement struct {
	ID        int64
	OwnerID   int64
	ProductID int64
	BatchID   int64
	Type      MovementType
	Quantity  int
	RefType   string
	RefID     int64
	Note      string
	CreatedBy int64
	CreatedAt time.Time
}

// ProductStock is the slice of the product row the engine locks.
type ProductStock struct {
	ID      int64
	OwnerID int64
	Name    string
	Stock   int
}

// InsufficientStockError reports a consumption request larger than the
// available aggregate stock. It wraps shared.ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// Unwrap lets errors.Is match the shared kind.
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// Correction is one product fixed by a reconciliation run.
type Correction struct {
	ProductID int64
	OldStock  int
	NewStock  int
}

// SyncReport summarises a reconciliation run.
type SyncReport struct {
	OwnerID     int64
	Products    int
	Corrections []Correction
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Corrected returns the number of products whose counter was fixed.
func (r SyncReport) Corrected() int {
	return len(r.Corrections)
}
