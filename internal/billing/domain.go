// Package billing owns the invoice lifecycle: numbering, tax computation,
// discount application, and the completed/cancelled/returned state machine.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/company"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	// StatusDraft marks an invoice still being edited.
	StatusDraft InvoiceStatus = "draft"
	// StatusCompleted marks a finalised invoice.
	StatusCompleted InvoiceStatus = "completed"
	// StatusCancelled marks a voided invoice. Consumed inventory is kept
	// as-is; restoring it is a deliberate manual adjustment.
	StatusCancelled InvoiceStatus = "cancelled"
	// StatusReturned marks an invoice whose goods came back.
	StatusReturned InvoiceStatus = "returned"
)

// PaymentStatus tracks how much of the total has been settled.
type PaymentStatus string

const (
	// PaymentUnpaid means nothing received.
	PaymentUnpaid PaymentStatus = "unpaid"
	// PaymentPartial means something, but less than the total.
	PaymentPartial PaymentStatus = "partial"
	// PaymentPaid means fully settled.
	PaymentPaid PaymentStatus = "paid"
)

// BillingMode selects taxed or untaxed invoicing.
type BillingMode string

const (
	// ModeWithGST applies the GST split.
	ModeWithGST BillingMode = "with_gst"
	// ModeWithoutGST zeroes every tax component.
	ModeWithoutGST BillingMode = "without_gst"
)

// PaymentStatusFor recomputes the settlement state from amounts.
func PaymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// InvoiceItem is one line of an invoice. Line amounts are computed once at
// write time and stored.
type InvoiceItem struct {
	ID              int64
	InvoiceID       int64
	ProductID       int64 // 0 for free-form lines outside the catalog
	ProductName     string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	LineTotal       decimal.Decimal
}

// Compute fills the derived line amounts: the percent discount against the
// gross value, line tax on the discounted base, and the line total.
func (it *InvoiceItem) Compute(mode BillingMode) {
	gross := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if it.DiscountPercent.IsPositive() {
		it.DiscountAmount = gross.Mul(it.DiscountPercent).Div(decimal.NewFromInt(100))
	}
	base := gross.Sub(it.DiscountAmount)
	if mode == ModeWithGST && it.TaxRate.IsPositive() {
		it.TaxAmount = base.Mul(it.TaxRate).Div(decimal.NewFromInt(100))
	} else {
		it.TaxAmount = decimal.Zero
	}
	it.LineTotal = base.Add(it.TaxAmount)
}

// Base returns the line's contribution to the invoice subtotal, i.e. the
// discounted gross without line tax.
func (it InvoiceItem) Base() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.DiscountAmount)
}

// Invoice is the billing aggregate root.
type Invoice struct {
	ID              int64
	Number          string
	OwnerID         int64
	CustomerID      int64 // 0 for walk-in sales
	Company         company.Snapshot
	Mode            BillingMode
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxRate         decimal.Decimal
	CGST            decimal.Decimal
	SGST            decimal.Decimal
	IGST            decimal.Decimal
	Total           decimal.Decimal
	Paid            decimal.Decimal
	PaymentStatus   PaymentStatus
	Status          InvoiceStatus
	Notes           string
	InvoiceDate     time.Time
	DueDate         *time.Time
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items []InvoiceItem
}

// ComputeTotals derives the invoice amounts from subtotal, discount and the
// tax split, rounding the final total once when the company profile says so.
func (inv *Invoice) ComputeTotals(split TaxSplit, roundOff bool) {
	inv.CGST = split.CGST
	inv.SGST = split.SGST
	inv.IGST = split.IGST
	total := inv.Subtotal.Sub(inv.DiscountAmount).Add(split.CGST).Add(split.SGST).Add(split.IGST)
	if roundOff {
		total = total.Round(0)
	}
	inv.Total = total
	inv.PaymentStatus = PaymentStatusFor(inv.Paid, inv.Total)
}

// ReturnStatus is the approval ladder of an invoice return.
type ReturnStatus string

const (
	// ReturnInitiated is a freshly filed return.
	ReturnInitiated ReturnStatus = "initiated"
	// ReturnApproved passed review.
	ReturnApproved ReturnStatus = "approved"
	// ReturnRejected failed review.
	ReturnRejected ReturnStatus = "rejected"
	// ReturnProcessed had its goods restocked.
	ReturnProcessed ReturnStatus = "processed"
)

// ReturnItem is one returned line.
type ReturnItem struct {
	ID        int64
	ReturnID  int64
	ProductID int64
	Quantity  int
}

// Return records goods coming back against an invoice. Filing or processing
// a return does not transition the invoice itself.
type Return struct {
	ID           int64
	OwnerID      int64
	InvoiceID    int64
	Number       string
	Reason       string
	Status       ReturnStatus
	RefundAmount decimal.Decimal
	Items        []ReturnItem
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
