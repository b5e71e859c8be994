// Package catalog holds product and customer master data consumed by the
// billing and inventory engines.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item with a denormalised aggregate stock counter.
// Batch-level detail lives in the inventory ledger; the counter is what
// point-of-sale availability checks read.
type Product struct {
	ID           int64
	OwnerID      int64
	Code         string
	Barcode      string
	Name         string
	Unit         string
	CostPrice    decimal.Decimal
	UnitPrice    decimal.Decimal
	TaxRate      decimal.Decimal
	ReorderLevel int
	Stock        int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLowStock reports whether the aggregate stock is at or below the
// reorder level.
func (p Product) IsLowStock() bool {
	return p.ReorderLevel > 0 && p.Stock <= p.ReorderLevel
}

// Customer is a billing counterparty. State feeds the CGST/SGST vs IGST
// split; a missing state means intra-state treatment.
type Customer struct {
	ID        int64
	OwnerID   int64
	Name      string
	Phone     string
	Email     string
	State     string
	Address   string
	GSTIN     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
