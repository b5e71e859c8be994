package payments

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arka-retail/arka/internal/billing"
	"github.com/arka-retail/arka/internal/shared"
)

type memoryPaymentsRepo struct {
	invoices map[int64]*InvoiceAccount
	payments map[int64]*Payment
	refunds  []Refund
	nextID   int64
}

func newMemoryPaymentsRepo() *memoryPaymentsRepo {
	return &memoryPaymentsRepo{
		invoices: make(map[int64]*InvoiceAccount),
		payments: make(map[int64]*Payment),
		nextID:   1,
	}
}

func (m *memoryPaymentsRepo) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return fn(m)
}

func (m *memoryPaymentsRepo) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return m.GetPaymentForUpdate(ctx, id)
}

func (m *memoryPaymentsRepo) ListPayments(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID && scope.Covers(p.OwnerID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memoryPaymentsRepo) ListRefunds(ctx context.Context, scope shared.Scope, paymentID int64) ([]Refund, error) {
	var out []Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID && scope.Covers(r.OwnerID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryPaymentsRepo) GetInvoiceAccountForUpdate(ctx context.Context, invoiceID int64) (InvoiceAccount, error) {
	account, ok := m.invoices[invoiceID]
	if !ok {
		return InvoiceAccount{}, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
	}
	return *account, nil
}

func (m *memoryPaymentsRepo) UpdateInvoicePaid(ctx context.Context, invoiceID int64, paid decimal.Decimal, status billing.PaymentStatus) error {
	account, ok := m.invoices[invoiceID]
	if !ok {
		return shared.ErrNotFound
	}
	account.Paid = paid
	return nil
}

func (m *memoryPaymentsRepo) InsertPayment(ctx context.Context, p *Payment) error {
	p.ID = m.nextID
	m.nextID++
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memoryPaymentsRepo) GetPaymentForUpdate(ctx context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, shared.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memoryPaymentsRepo) UpdatePaymentStatus(ctx context.Context, id int64, status Status) error {
	p, ok := m.payments[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *memoryPaymentsRepo) InsertRefund(ctx context.Context, r *Refund) error {
	r.ID = m.nextID
	m.nextID++
	m.refunds = append(m.refunds, *r)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newPaymentsFixture() (*Service, *memoryPaymentsRepo, *memoryIdempotency) {
	repo := newMemoryPaymentsRepo()
	repo.invoices[1] = &InvoiceAccount{
		ID:      1,
		OwnerID: 7,
		Status:  billing.StatusCompleted,
		Total:   d("236"),
		Paid:    decimal.Zero,
	}
	idem := newMemoryIdempotency()
	svc := NewService(repo, idem, nil, slog.New(slog.DiscardHandler))
	return svc, repo, idem
}

func TestRecordPayment(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	payment, err := svc.RecordPayment(context.Background(), shared.OwnerScope(7), RecordPaymentInput{
		InvoiceID: 1,
		Amount:    d("100"),
		Method:    MethodUPI,
		ActorID:   3,
	})
	require.NoError(t, err)
	require.Regexp(t, `^PAY-[0-9A-F]{12}$`, payment.Number)
	require.Equal(t, StatusCompleted, payment.Status)
	require.True(t, d("100").Equal(repo.invoices[1].Paid))
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	_, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("200"), Method: MethodCash, ActorID: 3,
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("100"), Method: MethodCash, ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, d("200").Equal(repo.invoices[1].Paid))
}

func TestRecordPaymentExactSettlement(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	_, err := svc.RecordPayment(context.Background(), shared.OwnerScope(7), RecordPaymentInput{
		InvoiceID: 1, Amount: d("236"), Method: MethodCard, ActorID: 3,
	})
	require.NoError(t, err)
	require.True(t, repo.invoices[1].Paid.Equal(repo.invoices[1].Total))
}

func TestRecordPaymentRejectsCancelledInvoice(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	repo.invoices[1].Status = billing.StatusCancelled
	_, err := svc.RecordPayment(context.Background(), shared.OwnerScope(7), RecordPaymentInput{
		InvoiceID: 1, Amount: d("50"), Method: MethodCash, ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRecordPaymentDedupesGatewayRef(t *testing.T) {
	svc, _, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	_, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("50"), Method: MethodUPI, GatewayRef: "upi-txn-1", ActorID: 3,
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("50"), Method: MethodUPI, GatewayRef: "upi-txn-1", ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestRecordPaymentReleasesKeyOnFailure(t *testing.T) {
	svc, _, idem := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	_, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("500"), Method: MethodUPI, GatewayRef: "upi-txn-2", ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.False(t, idem.keys["payment:upi-txn-2"])
}

func TestRecordPaymentScopeCheck(t *testing.T) {
	svc, _, _ := newPaymentsFixture()
	_, err := svc.RecordPayment(context.Background(), shared.OwnerScope(8), RecordPaymentInput{
		InvoiceID: 1, Amount: d("50"), Method: MethodCash, ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrPermission)
}

func TestRecordRefundPartial(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	payment, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("200"), Method: MethodCard, ActorID: 3,
	})
	require.NoError(t, err)

	refund, err := svc.RecordRefund(ctx, scope, RecordRefundInput{
		PaymentID: payment.ID, Amount: d("80"), Reason: "partial return", ActorID: 3,
	})
	require.NoError(t, err)
	require.Regexp(t, `^REF-[0-9A-F]{12}$`, refund.Number)

	// a partial refund leaves the payment completed
	require.Equal(t, StatusCompleted, repo.payments[payment.ID].Status)
	require.True(t, d("120").Equal(repo.invoices[1].Paid))
}

func TestRecordRefundFullFlipsPayment(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	payment, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("200"), Method: MethodCard, ActorID: 3,
	})
	require.NoError(t, err)

	_, err = svc.RecordRefund(ctx, scope, RecordRefundInput{
		PaymentID: payment.ID, Amount: d("200"), Reason: "order cancelled", ActorID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, repo.payments[payment.ID].Status)
	require.True(t, repo.invoices[1].Paid.IsZero())
}

func TestRecordRefundFloorsPaidAtZero(t *testing.T) {
	svc, repo, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	payment, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("100"), Method: MethodCash, ActorID: 3,
	})
	require.NoError(t, err)

	// external top-ups can make the refund exceed what this ledger saw paid
	repo.invoices[1].Paid = d("60")

	_, err = svc.RecordRefund(ctx, scope, RecordRefundInput{
		PaymentID: payment.ID, Amount: d("100"), Reason: "goodwill", ActorID: 3,
	})
	require.NoError(t, err)
	require.True(t, repo.invoices[1].Paid.IsZero())
	require.Equal(t, StatusRefunded, repo.payments[payment.ID].Status)
}

func TestRecordRefundTwiceConflicts(t *testing.T) {
	svc, _, _ := newPaymentsFixture()
	ctx := context.Background()
	scope := shared.OwnerScope(7)

	payment, err := svc.RecordPayment(ctx, scope, RecordPaymentInput{
		InvoiceID: 1, Amount: d("100"), Method: MethodCash, ActorID: 3,
	})
	require.NoError(t, err)

	_, err = svc.RecordRefund(ctx, scope, RecordRefundInput{
		PaymentID: payment.ID, Amount: d("100"), Reason: "first", ActorID: 3,
	})
	require.NoError(t, err)

	_, err = svc.RecordRefund(ctx, scope, RecordRefundInput{
		PaymentID: payment.ID, Amount: d("10"), Reason: "second", ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRecordRefundValidation(t *testing.T) {
	svc, _, _ := newPaymentsFixture()
	_, err := svc.RecordRefund(context.Background(), shared.OwnerScope(7), RecordRefundInput{
		PaymentID: 1, Amount: decimal.Zero, Reason: "none", ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordRefund(context.Background(), shared.OwnerScope(7), RecordRefundInput{
		PaymentID: 1, Amount: d("10"), Reason: "  ", ActorID: 3,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}
