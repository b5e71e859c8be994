package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/billing"
	"github.com/arka-retail/arka/internal/shared"
)

// InvoiceAccount is the settlement slice of the invoice row, locked for the
// duration of a payment or refund.
type InvoiceAccount struct {
	ID      int64
	OwnerID int64
	Status  billing.InvoiceStatus
	Total   decimal.Decimal
	Paid    decimal.Decimal
}

// TxRepository is the in-transaction view of payment storage.
type TxRepository interface {
	GetInvoiceAccountForUpdate(ctx context.Context, invoiceID int64) (InvoiceAccount, error)
	UpdateInvoicePaid(ctx context.Context, invoiceID int64, paid decimal.Decimal, status billing.PaymentStatus) error
	InsertPayment(ctx context.Context, p *Payment) error
	GetPaymentForUpdate(ctx context.Context, id int64) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status Status) error
	InsertRefund(ctx context.Context, r *Refund) error
}

// Repository defines persistence operations for the payments service.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Payment, error)
	ListRefunds(ctx context.Context, scope shared.Scope, paymentID int64) ([]Refund, error)
}

// IdempotencyPort dedupes gateway callbacks.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records settlement mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates payment recording and refunds.
type Service struct {
	repo        Repository
	idempotency IdempotencyPort
	audit       AuditPort
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, idempotency IdempotencyPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, idempotency: idempotency, audit: audit, logger: logger}
}

// RecordPaymentInput is a requested settlement.
type RecordPaymentInput struct {
	InvoiceID  int64
	Amount     decimal.Decimal
	Method     Method
	GatewayRef string
	Notes      string
	ActorID    int64
}

// RecordPayment settles part or all of an invoice. The invoice row stays
// locked while the paid amount moves, keeping it between zero and the total;
// overpayment is rejected rather than absorbed. A gateway reference dedupes
// retried callbacks.
func (s *Service) RecordPayment(ctx context.Context, scope shared.Scope, in RecordPaymentInput) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive: %w", shared.ErrValidation)
	}
	if !in.Method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q: %w", in.Method, shared.ErrValidation)
	}

	idemKey := ""
	if ref := strings.TrimSpace(in.GatewayRef); ref != "" && s.idempotency != nil {
		idemKey = "payment:" + ref
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "payments"); err != nil {
			return nil, err
		}
	}

	payment := &Payment{
		InvoiceID:  in.InvoiceID,
		Number:     NewPaymentNumber(),
		Amount:     in.Amount,
		Method:     in.Method,
		GatewayRef: strings.TrimSpace(in.GatewayRef),
		Status:     StatusCompleted,
		Notes:      in.Notes,
		CreatedBy:  in.ActorID,
	}

	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		account, err := tx.GetInvoiceAccountForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if err := scope.Check(account.OwnerID); err != nil {
			return err
		}
		if account.Status == billing.StatusCancelled {
			return fmt.Errorf("cannot pay a cancelled invoice: %w", shared.ErrConflict)
		}

		paid := account.Paid.Add(in.Amount)
		if paid.GreaterThan(account.Total) {
			return fmt.Errorf("payment of %s exceeds outstanding balance %s: %w",
				in.Amount, account.Total.Sub(account.Paid), shared.ErrValidation)
		}

		payment.OwnerID = account.OwnerID
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		return tx.UpdateInvoicePaid(ctx, in.InvoiceID, paid, billing.PaymentStatusFor(paid, account.Total))
	})
	if err != nil {
		if idemKey != "" {
			if derr := s.idempotency.Delete(ctx, idemKey); derr != nil {
				s.logger.Error("release idempotency key", slog.Any("error", derr), slog.String("key", idemKey))
			}
		}
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  payment.OwnerID,
		ActorID:  in.ActorID,
		Action:   "payments.recorded",
		Entity:   "payment",
		EntityID: strconv.FormatInt(payment.ID, 10),
		Meta:     map[string]any{"number": payment.Number, "invoice_id": in.InvoiceID, "amount": in.Amount.String()},
	})
	return payment, nil
}

// RecordRefundInput is a requested refund against a payment.
type RecordRefundInput struct {
	PaymentID int64
	Amount    decimal.Decimal
	Reason    string
	ActorID   int64
}

// RecordRefund gives money back against a payment. The payment flips to
// refunded only when the refund covers its full amount; the invoice's paid
// amount decreases but never below zero, and its settlement status is
// recomputed from the result.
func (s *Service) RecordRefund(ctx context.Context, scope shared.Scope, in RecordRefundInput) (*Refund, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("refund reason required: %w", shared.ErrValidation)
	}

	refund := &Refund{
		PaymentID: in.PaymentID,
		Number:    NewRefundNumber(),
		Amount:    in.Amount,
		Reason:    strings.TrimSpace(in.Reason),
		CreatedBy: in.ActorID,
	}

	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, in.PaymentID)
		if err != nil {
			return err
		}
		if err := scope.Check(payment.OwnerID); err != nil {
			return err
		}
		if payment.Status == StatusRefunded {
			return fmt.Errorf("payment %s already refunded: %w", payment.Number, shared.ErrConflict)
		}

		account, err := tx.GetInvoiceAccountForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}

		refund.OwnerID = payment.OwnerID
		refund.InvoiceID = payment.InvoiceID
		if err := tx.InsertRefund(ctx, refund); err != nil {
			return err
		}

		if in.Amount.GreaterThanOrEqual(payment.Amount) {
			if err := tx.UpdatePaymentStatus(ctx, payment.ID, StatusRefunded); err != nil {
				return err
			}
		}

		paid := account.Paid.Sub(in.Amount)
		if paid.IsNegative() {
			paid = decimal.Zero
		}
		return tx.UpdateInvoicePaid(ctx, payment.InvoiceID, paid, billing.PaymentStatusFor(paid, account.Total))
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  refund.OwnerID,
		ActorID:  in.ActorID,
		Action:   "payments.refunded",
		Entity:   "refund",
		EntityID: strconv.FormatInt(refund.ID, 10),
		Meta:     map[string]any{"number": refund.Number, "payment_id": in.PaymentID, "amount": in.Amount.String()},
	})
	return refund, nil
}

// Get returns a payment after a scope check.
func (s *Service) Get(ctx context.Context, scope shared.Scope, paymentID int64) (*Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := scope.Check(payment.OwnerID); err != nil {
		return nil, err
	}
	return payment, nil
}

// List returns the payments recorded against an invoice.
func (s *Service) List(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Payment, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListPayments(ctx, scope, invoiceID)
}

// ListRefunds returns the refunds recorded against a payment.
func (s *Service) ListRefunds(ctx context.Context, scope shared.Scope, paymentID int64) ([]Refund, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListRefunds(ctx, scope, paymentID)
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record audit log", slog.Any("error", err), slog.String("action", log.Action))
	}
}
