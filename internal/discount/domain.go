// Package discount manages tenant discount rules, validates them against
// the platform policy ceilings, and records every application.
package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType selects how a rule's value is read.
type RuleType string

const (
	// TypePercentage treats Value as a percentage of the base amount.
	TypePercentage RuleType = "percentage"
	// TypeFlat treats Value as an absolute amount.
	TypeFlat RuleType = "flat"
)

// Level restricts where a rule may be applied.
type Level string

const (
	// LevelItem applies to individual invoice lines.
	LevelItem Level = "item"
	// LevelBill applies to the invoice subtotal.
	LevelBill Level = "bill"
)

// Rule is a tenant-configured discount.
type Rule struct {
	ID               int64
	OwnerID          int64
	Name             string
	Code             string
	Type             RuleType
	Value            decimal.Decimal
	Level            Level
	MinOrderValue    decimal.Decimal
	MaxDiscountValue decimal.Decimal
	ValidFrom        *time.Time
	ValidTo          *time.Time
	IsActive         bool
	RequiresApproval bool
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidAt reports whether the rule may be applied at t: it must be active
// and t must sit inside the validity window.
func (r Rule) ValidAt(t time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && t.After(*r.ValidTo) {
		return false
	}
	return true
}

// AmountFor computes the discount a rule grants on base, honouring the
// rule's own cap and the minimum order value. The platform ceilings are
// enforced at rule write time, not here.
func (r Rule) AmountFor(base decimal.Decimal) decimal.Decimal {
	if r.MinOrderValue.IsPositive() && base.LessThan(r.MinOrderValue) {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch r.Type {
	case TypePercentage:
		amount = base.Mul(r.Value).Div(decimal.NewFromInt(100))
	case TypeFlat:
		amount = r.Value
	default:
		return decimal.Zero
	}
	if r.MaxDiscountValue.IsPositive() && amount.GreaterThan(r.MaxDiscountValue) {
		amount = r.MaxDiscountValue
	}
	if amount.GreaterThan(base) {
		amount = base
	}
	return amount
}

// Log records one application of a rule to an invoice. Every application
// writes a log row, whatever the outcome of the invoice afterwards.
type Log struct {
	ID        int64
	OwnerID   int64
	RuleID    int64
	InvoiceID int64
	Amount    decimal.Decimal
	AppliedBy int64
	AppliedAt time.Time
}
