package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arka-retail/arka/internal/company"
	"github.com/arka-retail/arka/internal/discount"
	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/settings"
	"github.com/arka-retail/arka/internal/shared"
)

// memoryBillingRepo implements Repository, TxRepository and
// inventory.TxStore over maps. WithTx snapshots the state and restores it
// when fn fails, mirroring a rollback.
type memoryBillingRepo struct {
	invoices     map[int64]*Invoice
	returns      map[int64]*Return
	counters     map[int64]int64
	discountLogs []discount.Log
	products     map[int64]*inventory.ProductStock
	batches      map[int64]*inventory.Batch
	movements    []inventory.Movement
	nextID       int64

	// conflictInserts forces the next N invoice inserts to fail with
	// ErrConflict, simulating a lost numbering race. Not rolled back.
	conflictInserts int
	insertAttempts  int
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		invoices: make(map[int64]*Invoice),
		returns:  make(map[int64]*Return),
		counters: make(map[int64]int64),
		products: make(map[int64]*inventory.ProductStock),
		batches:  make(map[int64]*inventory.Batch),
		nextID:   1,
	}
}

func (m *memoryBillingRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

type repoSnapshot struct {
	invoices     map[int64]*Invoice
	returns      map[int64]*Return
	counters     map[int64]int64
	discountLogs []discount.Log
	products     map[int64]*inventory.ProductStock
	batches      map[int64]*inventory.Batch
	movements    []inventory.Movement
	nextID       int64
}

func (m *memoryBillingRepo) snapshot() repoSnapshot {
	s := repoSnapshot{
		invoices: make(map[int64]*Invoice, len(m.invoices)),
		returns:  make(map[int64]*Return, len(m.returns)),
		counters: make(map[int64]int64, len(m.counters)),
		products: make(map[int64]*inventory.ProductStock, len(m.products)),
		batches:  make(map[int64]*inventory.Batch, len(m.batches)),
		nextID:   m.nextID,
	}
	for id, inv := range m.invoices {
		cp := *inv
		cp.Items = append([]InvoiceItem(nil), inv.Items...)
		s.invoices[id] = &cp
	}
	for id, ret := range m.returns {
		cp := *ret
		cp.Items = append([]ReturnItem(nil), ret.Items...)
		s.returns[id] = &cp
	}
	for id, next := range m.counters {
		s.counters[id] = next
	}
	for id, p := range m.products {
		cp := *p
		s.products[id] = &cp
	}
	for id, b := range m.batches {
		cp := *b
		s.batches[id] = &cp
	}
	s.discountLogs = append([]discount.Log(nil), m.discountLogs...)
	s.movements = append([]inventory.Movement(nil), m.movements...)
	return s
}

func (m *memoryBillingRepo) restore(s repoSnapshot) {
	m.invoices = s.invoices
	m.returns = s.returns
	m.counters = s.counters
	m.discountLogs = s.discountLogs
	m.products = s.products
	m.batches = s.batches
	m.movements = s.movements
	m.nextID = s.nextID
}

func (m *memoryBillingRepo) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	before := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memoryBillingRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	cp := *inv
	return &cp, nil
}

func (m *memoryBillingRepo) ListInvoices(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if scope.Covers(inv.OwnerID) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryBillingRepo) GetReturn(ctx context.Context, id int64) (*Return, error) {
	ret, ok := m.returns[id]
	if !ok {
		return nil, fmt.Errorf("return %d: %w", id, shared.ErrNotFound)
	}
	cp := *ret
	return &cp, nil
}

func (m *memoryBillingRepo) ListReturns(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Return, error) {
	var out []Return
	for _, ret := range m.returns {
		if ret.InvoiceID == invoiceID && scope.Covers(ret.OwnerID) {
			out = append(out, *ret)
		}
	}
	return out, nil
}

func (m *memoryBillingRepo) LockInvoiceCounter(ctx context.Context, ownerID int64) (int64, bool, error) {
	next, ok := m.counters[ownerID]
	return next, ok, nil
}

func (m *memoryBillingRepo) SaveInvoiceCounter(ctx context.Context, ownerID, next int64) error {
	m.counters[ownerID] = next
	return nil
}

func (m *memoryBillingRepo) LatestInvoiceNumber(ctx context.Context, ownerID int64, prefix string) (string, bool, error) {
	var latest string
	var latestID int64
	for _, inv := range m.invoices {
		if inv.OwnerID == ownerID && inv.ID > latestID {
			latest = inv.Number
			latestID = inv.ID
		}
	}
	return latest, latestID > 0, nil
}

func (m *memoryBillingRepo) InsertInvoice(ctx context.Context, inv *Invoice) error {
	m.insertAttempts++
	if m.conflictInserts > 0 {
		m.conflictInserts--
		return fmt.Errorf("invoice number %s already taken: %w", inv.Number, shared.ErrConflict)
	}
	inv.ID = m.id()
	cp := *inv
	cp.Items = nil
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memoryBillingRepo) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range items {
		items[i].ID = m.id()
		items[i].InvoiceID = invoiceID
		inv.Items = append(inv.Items, items[i])
	}
	return nil
}

func (m *memoryBillingRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, shared.ErrNotFound)
	}
	cp := *inv
	cp.Items = append([]InvoiceItem(nil), inv.Items...)
	return &cp, nil
}

func (m *memoryBillingRepo) GetItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return append([]InvoiceItem(nil), inv.Items...), nil
}

func (m *memoryBillingRepo) UpdateInvoiceTotals(ctx context.Context, inv *Invoice) error {
	stored, ok := m.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	items := stored.Items
	cp := *inv
	cp.Items = items
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memoryBillingRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	inv, ok := m.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (m *memoryBillingRepo) InsertDiscountLog(ctx context.Context, log discount.Log) error {
	m.discountLogs = append(m.discountLogs, log)
	return nil
}

func (m *memoryBillingRepo) InsertReturn(ctx context.Context, ret *Return) error {
	ret.ID = m.id()
	for i := range ret.Items {
		ret.Items[i].ID = m.id()
		ret.Items[i].ReturnID = ret.ID
	}
	cp := *ret
	cp.Items = append([]ReturnItem(nil), ret.Items...)
	m.returns[ret.ID] = &cp
	return nil
}

func (m *memoryBillingRepo) GetReturnForUpdate(ctx context.Context, id int64) (*Return, error) {
	ret, ok := m.returns[id]
	if !ok {
		return nil, fmt.Errorf("return %d: %w", id, shared.ErrNotFound)
	}
	cp := *ret
	cp.Items = append([]ReturnItem(nil), ret.Items...)
	return &cp, nil
}

func (m *memoryBillingRepo) UpdateReturnStatus(ctx context.Context, id int64, status ReturnStatus) error {
	ret, ok := m.returns[id]
	if !ok {
		return shared.ErrNotFound
	}
	ret.Status = status
	return nil
}

func (m *memoryBillingRepo) Inventory() inventory.TxStore { return m }

func (m *memoryBillingRepo) GetProductForUpdate(ctx context.Context, productID int64) (inventory.ProductStock, error) {
	p, ok := m.products[productID]
	if !ok {
		return inventory.ProductStock{}, fmt.Errorf("product %d: %w", productID, shared.ErrNotFound)
	}
	return *p, nil
}

func (m *memoryBillingRepo) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	p, ok := m.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Stock = stock
	return nil
}

func (m *memoryBillingRepo) BatchesForConsume(ctx context.Context, productID int64) ([]inventory.Batch, error) {
	var out []inventory.Batch
	for _, b := range m.batches {
		if b.ProductID == productID && b.RemainingQty > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.ReceivedAt.Before(b.ReceivedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ReceivedAt.Before(b.ReceivedAt)
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})
	return out, nil
}

func (m *memoryBillingRepo) UpdateBatchRemaining(ctx context.Context, batchID int64, remaining int) error {
	b, ok := m.batches[batchID]
	if !ok {
		return shared.ErrNotFound
	}
	b.RemainingQty = remaining
	return nil
}

func (m *memoryBillingRepo) InsertBatch(ctx context.Context, b inventory.Batch) (int64, error) {
	b.ID = m.id()
	m.batches[b.ID] = &b
	return b.ID, nil
}

func (m *memoryBillingRepo) InsertMovement(ctx context.Context, mv inventory.Movement) (int64, error) {
	mv.ID = m.id()
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryBillingRepo) ProductIDs(ctx context.Context, ownerID int64) ([]int64, error) {
	var ids []int64
	for id, p := range m.products {
		if p.OwnerID == ownerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryBillingRepo) SumBatchRemaining(ctx context.Context, productID int64) (int, error) {
	sum := 0
	for _, b := range m.batches {
		if b.ProductID == productID {
			sum += b.RemainingQty
		}
	}
	return sum, nil
}

func (m *memoryBillingRepo) InsertSyncLog(ctx context.Context, report inventory.SyncReport) error {
	return nil
}

type fakeSettings struct{ snap settings.Snapshot }

func (f fakeSettings) Snapshot(ctx context.Context) (settings.Snapshot, error) {
	return f.snap, nil
}

type fakeCompanies struct{ profile company.Profile }

func (f fakeCompanies) GetProfile(ctx context.Context, ownerID int64) (company.Profile, error) {
	return f.profile, nil
}

type fakeCustomers struct{ states map[int64]string }

func (f fakeCustomers) State(ctx context.Context, ownerID, customerID int64) (string, error) {
	return f.states[customerID], nil
}

type fakeDiscounts struct{ rules map[string]discount.Rule }

func (f fakeDiscounts) Resolve(ctx context.Context, scope shared.Scope, ownerID int64, code string) (discount.Rule, error) {
	rule, ok := f.rules[code]
	if !ok {
		return discount.Rule{}, fmt.Errorf("discount rule %q: %w", code, shared.ErrNotFound)
	}
	return rule, nil
}

type fakeAudit struct{ logs []shared.AuditLog }

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeApprovals struct {
	submits []string
	records []shared.ApprovalLog
}

func (f *fakeApprovals) EnsureSubmit(ctx context.Context, module, ref string, actorID int64, note string) error {
	f.submits = append(f.submits, module+":"+ref)
	return nil
}

func (f *fakeApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	f.records = append(f.records, log)
	return nil
}

type billingFixture struct {
	svc       *Service
	repo      *memoryBillingRepo
	audit     *fakeAudit
	approvals *fakeApprovals
	customers fakeCustomers
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	repo := newMemoryBillingRepo()
	repo.products[1] = &inventory.ProductStock{ID: 1, OwnerID: 7, Name: "Basmati Rice 5kg", Stock: 50}
	repo.products[2] = &inventory.ProductStock{ID: 2, OwnerID: 7, Name: "Sunflower Oil 1L", Stock: 10}

	audit := &fakeAudit{}
	approvals := &fakeApprovals{}
	customers := fakeCustomers{states: map[int64]string{
		11: "Karnataka",
		12: "Maharashtra",
	}}

	snap := settings.Defaults()
	svc := NewService(ServiceParams{
		Repo:     repo,
		Engine:   inventory.NewEngine(),
		Settings: fakeSettings{snap: snap},
		Companies: fakeCompanies{profile: company.Profile{
			OwnerID: 7,
			Name:    "Sharma Traders",
			Code:    "SHA",
			State:   "Karnataka",
			Billing: company.BillingSettings{RoundOffTotal: false},
		}},
		Customers: customers,
		Discounts: fakeDiscounts{rules: map[string]discount.Rule{
			"SEASON": {
				ID:       1,
				OwnerID:  7,
				Code:     "SEASON",
				Type:     discount.TypePercentage,
				Value:    decimal.NewFromInt(10),
				Level:    discount.LevelBill,
				IsActive: true,
			},
		}},
		Audit:     audit,
		Approvals: approvals,
		Logger:    slog.New(slog.DiscardHandler),
	})
	return &billingFixture{svc: svc, repo: repo, audit: audit, approvals: approvals, customers: customers}
}

func basicInput(customerID int64) CreateInvoiceInput {
	return CreateInvoiceInput{
		OwnerID:    7,
		CustomerID: customerID,
		ActorID:    3,
		Items: []CreateItemInput{
			{ProductID: 1, Name: "Basmati Rice 5kg", Quantity: 2, UnitPrice: d("100")},
		},
	}
}

func TestCreateInvoiceIntraStateSplit(t *testing.T) {
	f := newBillingFixture(t)
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), basicInput(11))
	require.NoError(t, err)

	require.Equal(t, "SHA-INV-1001", inv.Number)
	require.Equal(t, StatusDraft, inv.Status)
	require.True(t, d("200").Equal(inv.Subtotal))
	require.True(t, d("18").Equal(inv.CGST))
	require.True(t, d("18").Equal(inv.SGST))
	require.True(t, inv.IGST.IsZero())
	require.True(t, d("236").Equal(inv.Total), "got %s", inv.Total)
	require.Equal(t, PaymentUnpaid, inv.PaymentStatus)
	require.Equal(t, "Sharma Traders", inv.Company.Name)

	require.Equal(t, 48, f.repo.products[1].Stock)
	require.Len(t, f.repo.movements, 1)
	require.Equal(t, inventory.MovementSale, f.repo.movements[0].Type)
	require.Equal(t, -2, f.repo.movements[0].Quantity)
}

func TestCreateInvoiceInterStateIGST(t *testing.T) {
	f := newBillingFixture(t)
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), basicInput(12))
	require.NoError(t, err)

	require.True(t, inv.CGST.IsZero())
	require.True(t, inv.SGST.IsZero())
	require.True(t, d("36").Equal(inv.IGST))
	require.True(t, d("236").Equal(inv.Total))
}

func TestCreateInvoiceWithoutGST(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.Mode = ModeWithoutGST
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.NoError(t, err)

	require.True(t, inv.CGST.IsZero())
	require.True(t, inv.SGST.IsZero())
	require.True(t, inv.IGST.IsZero())
	require.True(t, d("200").Equal(inv.Total))
}

func TestCreateInvoiceTotalsInvariant(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.DiscountPercent = d("10")
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.NoError(t, err)

	expected := inv.Subtotal.Sub(inv.DiscountAmount).Add(inv.CGST).Add(inv.SGST).Add(inv.IGST)
	require.True(t, expected.Equal(inv.Total))
	require.True(t, d("20").Equal(inv.DiscountAmount))
}

func TestCreateInvoiceDiscountCodeWritesLog(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.DiscountCode = "SEASON"
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.NoError(t, err)

	require.True(t, d("20").Equal(inv.DiscountAmount))
	require.Len(t, f.repo.discountLogs, 1)
	require.Equal(t, inv.ID, f.repo.discountLogs[0].InvoiceID)
	require.True(t, d("20").Equal(f.repo.discountLogs[0].Amount))
}

func TestCreateInvoiceAdHocDiscountCeiling(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.DiscountPercent = d("60")
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.ErrorIs(t, err, shared.ErrPolicyLimit)
	require.Contains(t, err.Error(), "50")
	require.Empty(t, f.repo.invoices)
}

func TestCreateInvoiceRejectsOverpayment(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.PaidAmount = d("500")
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateInvoiceInsufficientStockLeavesNoTrace(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.Items = []CreateItemInput{
		{ProductID: 1, Name: "Basmati Rice 5kg", Quantity: 1, UnitPrice: d("100")},
		{ProductID: 2, Name: "Sunflower Oil 1L", Quantity: 25, UnitPrice: d("150")},
	}
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	require.Empty(t, f.repo.invoices)
	require.Empty(t, f.repo.movements)
	require.Equal(t, 50, f.repo.products[1].Stock)
	require.Equal(t, 10, f.repo.products[2].Stock)
}

func TestCreateInvoiceRetriesOnNumberConflict(t *testing.T) {
	f := newBillingFixture(t)
	f.repo.conflictInserts = 1
	inv, err := f.svc.Create(context.Background(), shared.OwnerScope(7), basicInput(11))
	require.NoError(t, err)
	require.Equal(t, 2, f.repo.insertAttempts)
	require.Equal(t, "SHA-INV-1001", inv.Number)
}

func TestCreateInvoiceGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newBillingFixture(t)
	f.repo.conflictInserts = 10
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(7), basicInput(11))
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, maxNumberAttempts, f.repo.insertAttempts)
}

func TestCreateInvoiceScopeCheck(t *testing.T) {
	f := newBillingFixture(t)
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(8), basicInput(11))
	require.ErrorIs(t, err, shared.ErrPermission)
}

func TestCreateInvoiceSkipsStockForFreeFormLines(t *testing.T) {
	f := newBillingFixture(t)
	in := basicInput(11)
	in.Items = []CreateItemInput{
		{ProductID: 0, Name: "Delivery charge", Quantity: 1, UnitPrice: d("50")},
	}
	_, err := f.svc.Create(context.Background(), shared.OwnerScope(7), in)
	require.NoError(t, err)
	require.Empty(t, f.repo.movements)
}

func TestAddItemsOnlyOnDraft(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)

	more := []CreateItemInput{{ProductID: 2, Name: "Sunflower Oil 1L", Quantity: 1, UnitPrice: d("150")}}
	updated, err := f.svc.AddItems(ctx, scope, inv.ID, more, 3)
	require.NoError(t, err)
	require.True(t, d("350").Equal(updated.Subtotal))
	require.Len(t, updated.Items, 2)
	require.Equal(t, 9, f.repo.products[2].Stock)

	_, err = f.svc.Complete(ctx, scope, inv.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.AddItems(ctx, scope, inv.ID, more, 3)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestAddItemsEnforcesItemDiscountCeiling(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)

	more := []CreateItemInput{
		{ProductID: 2, Name: "Sunflower Oil 1L", Quantity: 1, UnitPrice: d("150"), DiscountPercent: d("60")},
	}
	_, err = f.svc.AddItems(ctx, scope, inv.ID, more, 3)
	require.ErrorIs(t, err, shared.ErrPolicyLimit)
	require.Contains(t, err.Error(), "50")

	kept, err := f.svc.Get(ctx, scope, inv.ID)
	require.NoError(t, err)
	require.Len(t, kept.Items, 1)
	require.True(t, d("200").Equal(kept.Subtotal))
	require.Equal(t, 10, f.repo.products[2].Stock)
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)

	first, err := f.svc.Complete(ctx, scope, inv.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)

	again, err := f.svc.Complete(ctx, scope, inv.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, again.Status)
}

func TestCompleteCancelledInvoiceConflicts(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, scope, inv.ID, 3)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, scope, inv.ID, 3)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCancelDoesNotRestoreInventory(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)
	require.Equal(t, 48, f.repo.products[1].Stock)

	cancelled, err := f.svc.Cancel(ctx, scope, inv.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 48, f.repo.products[1].Stock)
}

func TestReturnLifecycle(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, scope, inv.ID, 3)
	require.NoError(t, err)
	stockAfterSale := f.repo.products[1].Stock

	ret, err := f.svc.CreateReturn(ctx, scope, CreateReturnInput{
		InvoiceID:    inv.ID,
		Reason:       "damaged packaging",
		Items:        []ReturnItem{{ProductID: 1, Quantity: 1}},
		RefundAmount: d("118"),
		ActorID:      3,
	})
	require.NoError(t, err)
	require.Equal(t, ReturnInitiated, ret.Status)
	require.Regexp(t, `^RET-\d{8}-[0-9A-F]{6}$`, ret.Number)
	require.Len(t, f.approvals.submits, 1)

	reviewed, err := f.svc.ReviewReturn(ctx, scope, ret.ID, true, "ok", 4)
	require.NoError(t, err)
	require.Equal(t, ReturnApproved, reviewed.Status)

	processed, err := f.svc.ProcessReturn(ctx, scope, ret.ID, 4)
	require.NoError(t, err)
	require.Equal(t, ReturnProcessed, processed.Status)
	require.Equal(t, stockAfterSale+1, f.repo.products[1].Stock)

	// the invoice itself keeps its lifecycle state
	stored, err := f.svc.Get(ctx, scope, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestCreateReturnAgainstDraftConflicts(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)

	_, err = f.svc.CreateReturn(ctx, scope, CreateReturnInput{
		InvoiceID: inv.ID,
		Reason:    "changed mind",
		Items:     []ReturnItem{{ProductID: 1, Quantity: 1}},
		ActorID:   3,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestProcessUnapprovedReturnConflicts(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	scope := shared.OwnerScope(7)
	inv, err := f.svc.Create(ctx, scope, basicInput(11))
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, scope, inv.ID, 3)
	require.NoError(t, err)

	ret, err := f.svc.CreateReturn(ctx, scope, CreateReturnInput{
		InvoiceID: inv.ID,
		Reason:    "damaged",
		Items:     []ReturnItem{{ProductID: 1, Quantity: 1}},
		ActorID:   3,
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessReturn(ctx, scope, ret.ID, 4)
	require.ErrorIs(t, err, shared.ErrConflict)
}
