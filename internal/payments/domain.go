// Package payments settles invoices: payment recording, refunds, and the
// paid-amount reconciliation on the invoice.
package payments

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method is the settlement channel.
type Method string

const (
	// MethodCash is an over-the-counter cash payment.
	MethodCash Method = "cash"
	// MethodCard is a card swipe.
	MethodCard Method = "card"
	// MethodUPI is a UPI transfer.
	MethodUPI Method = "upi"
	// MethodBankTransfer is a direct bank transfer.
	MethodBankTransfer Method = "bank_transfer"
	// MethodCheque is a cheque deposit.
	MethodCheque Method = "cheque"
)

// Valid reports whether the method is a known channel.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodCheque:
		return true
	}
	return false
}

// Status is the state of a recorded payment.
type Status string

const (
	// StatusCompleted is a settled payment.
	StatusCompleted Status = "completed"
	// StatusRefunded is a payment fully given back.
	StatusRefunded Status = "refunded"
)

// Payment is one settlement against an invoice.
type Payment struct {
	ID         int64
	OwnerID    int64
	InvoiceID  int64
	Number     string
	Amount     decimal.Decimal
	Method     Method
	GatewayRef string
	Status     Status
	Notes      string
	CreatedBy  int64
	CreatedAt  time.Time
}

// Refund is money given back against a payment.
type Refund struct {
	ID        int64
	OwnerID   int64
	PaymentID int64
	InvoiceID int64
	Number    string
	Amount    decimal.Decimal
	Reason    string
	CreatedBy int64
	CreatedAt time.Time
}

// NewPaymentNumber mints an opaque payment reference.
func NewPaymentNumber() string {
	return "PAY-" + shortRef()
}

// NewRefundNumber mints an opaque refund reference.
func NewRefundNumber() string {
	return "REF-" + shortRef()
}

func shortRef() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}
