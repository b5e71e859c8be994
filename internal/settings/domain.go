// Package settings loads the platform-wide policy record. Services receive
// an immutable Snapshot per operation; mid-flight policy edits never change
// a running transaction.
package settings

import "github.com/shopspring/decimal"

// DiscountLevel restricts where discounts may be configured.
type DiscountLevel string

const (
	// DiscountLevelItem allows item-level discounts only.
	DiscountLevelItem DiscountLevel = "ITEM_ONLY"
	// DiscountLevelBill allows bill-level discounts only.
	DiscountLevelBill DiscountLevel = "BILL_ONLY"
	// DiscountLevelBoth allows both levels.
	DiscountLevelBoth DiscountLevel = "BOTH"
)

// AllowsItem reports whether item-level discounts are permitted.
func (l DiscountLevel) AllowsItem() bool {
	return l == DiscountLevelItem || l == DiscountLevelBoth
}

// AllowsBill reports whether bill-level discounts are permitted.
func (l DiscountLevel) AllowsBill() bool {
	return l == DiscountLevelBill || l == DiscountLevelBoth
}

// Snapshot is the platform policy as of one point in time.
type Snapshot struct {
	DefaultTaxRate decimal.Decimal

	EnableDiscounts      bool
	AllowPercentDiscount bool
	AllowFlatDiscount    bool
	MaxDiscountPercent   decimal.Decimal
	MaxDiscountAmount    decimal.Decimal
	DiscountLevel        DiscountLevel

	InvoicePrefix         string
	InvoiceStartingNumber int64
}

// Defaults returns the snapshot used when no settings row exists yet.
func Defaults() Snapshot {
	return Snapshot{
		DefaultTaxRate:        decimal.NewFromInt(18),
		EnableDiscounts:       true,
		AllowPercentDiscount:  true,
		AllowFlatDiscount:     true,
		MaxDiscountPercent:    decimal.NewFromInt(50),
		MaxDiscountAmount:     decimal.NewFromInt(10000),
		DiscountLevel:         DiscountLevelBoth,
		InvoicePrefix:         "INV",
		InvoiceStartingNumber: 1001,
	}
}
