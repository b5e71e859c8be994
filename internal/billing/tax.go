package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TaxSplit is the GST decomposition of an invoice's tax.
type TaxSplit struct {
	CGST decimal.Decimal
	SGST decimal.Decimal
	IGST decimal.Decimal
}

// SplitTax computes the GST components for an invoice subtotal. Untaxed
// mode yields all zeros. Otherwise the full tax is subtotal*rate/100; an
// inter-state supply (both states known, case-insensitive mismatch) puts
// everything into IGST, while intra-state and unknown-state supplies split
// it evenly between CGST and SGST.
func SplitTax(subtotal, rate decimal.Decimal, mode BillingMode, companyState, customerState string) TaxSplit {
	if mode != ModeWithGST || !rate.IsPositive() || !subtotal.IsPositive() {
		return TaxSplit{CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero}
	}

	tax := subtotal.Mul(rate).Div(decimal.NewFromInt(100))

	if interState(companyState, customerState) {
		return TaxSplit{CGST: decimal.Zero, SGST: decimal.Zero, IGST: tax}
	}
	half := tax.Div(decimal.NewFromInt(2))
	return TaxSplit{CGST: half, SGST: half, IGST: decimal.Zero}
}

// Total returns the sum of all components.
func (s TaxSplit) Total() decimal.Decimal {
	return s.CGST.Add(s.SGST).Add(s.IGST)
}

func interState(companyState, customerState string) bool {
	a := strings.TrimSpace(companyState)
	b := strings.TrimSpace(customerState)
	if a == "" || b == "" {
		return false
	}
	return !strings.EqualFold(a, b)
}
