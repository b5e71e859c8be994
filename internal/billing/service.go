package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/company"
	"github.com/arka-retail/arka/internal/discount"
	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/settings"
	"github.com/arka-retail/arka/internal/shared"
)

// Number allocation retries once more after a unique-constraint race before
// giving up with ErrConflict.
const maxNumberAttempts = 3

// TxRepository is the in-transaction view of billing storage.
type TxRepository interface {
	CounterStore
	InsertInvoice(ctx context.Context, inv *Invoice) error
	InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	GetItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	UpdateInvoiceTotals(ctx context.Context, inv *Invoice) error
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
	InsertDiscountLog(ctx context.Context, log discount.Log) error
	InsertReturn(ctx context.Context, ret *Return) error
	GetReturnForUpdate(ctx context.Context, id int64) (*Return, error)
	UpdateReturnStatus(ctx context.Context, id int64, status ReturnStatus) error
	Inventory() inventory.TxStore
}

// Repository defines persistence operations for the billing service.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, int, error)
	GetReturn(ctx context.Context, id int64) (*Return, error)
	ListReturns(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Return, error)
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	CustomerID    int64
	Page          int
	PerPage       int
}

// SettingsPort supplies the platform policy snapshot.
type SettingsPort interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// CompanyPort supplies the tenant company profile.
type CompanyPort interface {
	GetProfile(ctx context.Context, ownerID int64) (company.Profile, error)
}

// CustomerPort supplies the customer state for the tax split.
type CustomerPort interface {
	State(ctx context.Context, ownerID, customerID int64) (string, error)
}

// DiscountPort resolves discount rules at invoice time.
type DiscountPort interface {
	Resolve(ctx context.Context, scope shared.Scope, ownerID int64, code string) (discount.Rule, error)
}

// AuditPort records billing mutations after commit.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records the return approval trail.
type ApprovalPort interface {
	EnsureSubmit(ctx context.Context, module, ref string, actorID int64, note string) error
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service orchestrates the invoice lifecycle.
type Service struct {
	repo      Repository
	engine    *inventory.Engine
	settings  SettingsPort
	companies CompanyPort
	customers CustomerPort
	discounts DiscountPort
	audit     AuditPort
	approvals ApprovalPort
	logger    *slog.Logger
}

// ServiceParams groups Service dependencies.
type ServiceParams struct {
	Repo      Repository
	Engine    *inventory.Engine
	Settings  SettingsPort
	Companies CompanyPort
	Customers CustomerPort
	Discounts DiscountPort
	Audit     AuditPort
	Approvals ApprovalPort
	Logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	return &Service{
		repo:      p.Repo,
		engine:    p.Engine,
		settings:  p.Settings,
		companies: p.Companies,
		customers: p.Customers,
		discounts: p.Discounts,
		audit:     p.Audit,
		approvals: p.Approvals,
		logger:    p.Logger,
	}
}

// CreateItemInput is one requested invoice line.
type CreateItemInput struct {
	ProductID       int64
	Name            string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         *decimal.Decimal
}

// CreateInvoiceInput is a requested invoice.
type CreateInvoiceInput struct {
	OwnerID         int64
	CustomerID      int64
	Mode            BillingMode
	TaxRate         *decimal.Decimal
	DiscountCode    string
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Items           []CreateItemInput
	Notes           string
	DueDate         *time.Time
	PaidAmount      decimal.Decimal
	ActorID         int64
}

// Create builds and persists an invoice in one transaction: number
// allocation, line computation, inventory consumption, tax split, discount
// application and the company snapshot. A failure at any step leaves no
// partial trace.
func (s *Service) Create(ctx context.Context, scope shared.Scope, in CreateInvoiceInput) (*Invoice, error) {
	if err := scope.Check(in.OwnerID); err != nil {
		return nil, err
	}
	if err := validateCart(in.Items); err != nil {
		return nil, err
	}
	switch in.Mode {
	case "":
		in.Mode = ModeWithGST
	case ModeWithGST, ModeWithoutGST:
	default:
		return nil, fmt.Errorf("unknown billing mode %q: %w", in.Mode, shared.ErrValidation)
	}
	if in.PaidAmount.IsNegative() {
		return nil, fmt.Errorf("paid amount must not be negative: %w", shared.ErrValidation)
	}

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.companies.GetProfile(ctx, in.OwnerID)
	if err != nil {
		return nil, err
	}

	customerState := ""
	if in.CustomerID > 0 {
		customerState, err = s.customers.State(ctx, in.OwnerID, in.CustomerID)
		if err != nil {
			return nil, err
		}
	}

	taxRate := snap.DefaultTaxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative: %w", shared.ErrValidation)
	}

	inv := &Invoice{
		OwnerID:         in.OwnerID,
		CustomerID:      in.CustomerID,
		Company:         profile.Snapshot(),
		Mode:            in.Mode,
		TaxRate:         taxRate,
		DiscountPercent: in.DiscountPercent,
		Notes:           in.Notes,
		InvoiceDate:     time.Now().UTC(),
		DueDate:         in.DueDate,
		Status:          StatusDraft,
		Paid:            in.PaidAmount,
		CreatedBy:       in.ActorID,
	}

	subtotal := decimal.Zero
	for _, line := range in.Items {
		item := InvoiceItem{
			ProductID:       line.ProductID,
			ProductName:     line.Name,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
			TaxRate:         taxRate,
		}
		if line.TaxRate != nil {
			item.TaxRate = *line.TaxRate
		}
		if item.DiscountPercent.IsPositive() {
			if err := checkItemDiscount(snap, item.DiscountPercent); err != nil {
				return nil, err
			}
		}
		item.Compute(in.Mode)
		subtotal = subtotal.Add(item.Base())
		inv.Items = append(inv.Items, item)
	}
	inv.Subtotal = subtotal

	var appliedRule *discount.Rule
	switch {
	case in.DiscountCode != "":
		rule, err := s.discounts.Resolve(ctx, scope, in.OwnerID, in.DiscountCode)
		if err != nil {
			return nil, err
		}
		if rule.Level != discount.LevelBill {
			return nil, fmt.Errorf("discount %s is not a bill-level rule: %w", rule.Code, shared.ErrValidation)
		}
		inv.DiscountAmount = rule.AmountFor(subtotal)
		appliedRule = &rule
	case in.DiscountPercent.IsPositive() || in.DiscountAmount.IsPositive():
		amount, err := adHocBillDiscount(snap, in.DiscountPercent, in.DiscountAmount, subtotal)
		if err != nil {
			return nil, err
		}
		inv.DiscountAmount = amount
	}
	if inv.DiscountAmount.GreaterThan(subtotal) {
		return nil, fmt.Errorf("discount exceeds subtotal: %w", shared.ErrValidation)
	}

	split := SplitTax(subtotal, taxRate, in.Mode, profile.State, customerState)
	inv.ComputeTotals(split, profile.Billing.RoundOffTotal)
	if inv.Paid.GreaterThan(inv.Total) {
		return nil, fmt.Errorf("paid amount exceeds invoice total: %w", shared.ErrValidation)
	}

	for attempt := 0; ; attempt++ {
		err = s.repo.WithTx(ctx, func(tx TxRepository) error {
			number, err := AllocateNumber(ctx, tx, in.OwnerID, profile.Code, snap.InvoicePrefix, snap.InvoiceStartingNumber)
			if err != nil {
				return err
			}
			inv.Number = number
			if err := tx.InsertInvoice(ctx, inv); err != nil {
				return err
			}
			if err := tx.InsertItems(ctx, inv.ID, inv.Items); err != nil {
				return err
			}
			for _, item := range inv.Items {
				if item.ProductID == 0 {
					continue
				}
				if _, err := s.engine.Consume(ctx, tx.Inventory(), inventory.ConsumeInput{
					OwnerID:   in.OwnerID,
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
					RefType:   "invoice",
					RefID:     inv.ID,
					ActorID:   in.ActorID,
				}); err != nil {
					return err
				}
			}
			if appliedRule != nil {
				return tx.InsertDiscountLog(ctx, discount.Log{
					OwnerID:   in.OwnerID,
					RuleID:    appliedRule.ID,
					InvoiceID: inv.ID,
					Amount:    inv.DiscountAmount,
					AppliedBy: in.ActorID,
					AppliedAt: time.Now().UTC(),
				})
			}
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, shared.ErrConflict) && attempt < maxNumberAttempts-1 {
			continue
		}
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  in.OwnerID,
		ActorID:  in.ActorID,
		Action:   "billing.invoice_created",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     map[string]any{"number": inv.Number, "total": inv.Total.String()},
	})
	return inv, nil
}

// AddItems appends lines to a draft invoice, consuming inventory and
// recomputing the totals in the same transaction.
func (s *Service) AddItems(ctx context.Context, scope shared.Scope, invoiceID int64, items []CreateItemInput, actorID int64) (*Invoice, error) {
	if err := validateCart(items); err != nil {
		return nil, err
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	err = s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := scope.Check(inv.OwnerID); err != nil {
			return err
		}
		if inv.Status != StatusDraft {
			return fmt.Errorf("cannot add items to a %s invoice: %w", inv.Status, shared.ErrConflict)
		}

		profile, err := s.companies.GetProfile(ctx, inv.OwnerID)
		if err != nil {
			return err
		}
		customerState := ""
		if inv.CustomerID > 0 {
			customerState, err = s.customers.State(ctx, inv.OwnerID, inv.CustomerID)
			if err != nil {
				return err
			}
		}

		var added []InvoiceItem
		for _, line := range items {
			item := InvoiceItem{
				InvoiceID:       invoiceID,
				ProductID:       line.ProductID,
				ProductName:     line.Name,
				Quantity:        line.Quantity,
				UnitPrice:       line.UnitPrice,
				DiscountPercent: line.DiscountPercent,
				TaxRate:         inv.TaxRate,
			}
			if line.TaxRate != nil {
				item.TaxRate = *line.TaxRate
			}
			if item.DiscountPercent.IsPositive() {
				if err := checkItemDiscount(snap, item.DiscountPercent); err != nil {
					return err
				}
			}
			item.Compute(inv.Mode)
			inv.Subtotal = inv.Subtotal.Add(item.Base())
			added = append(added, item)
		}
		if err := tx.InsertItems(ctx, invoiceID, added); err != nil {
			return err
		}
		for _, item := range added {
			if item.ProductID == 0 {
				continue
			}
			if _, err := s.engine.Consume(ctx, tx.Inventory(), inventory.ConsumeInput{
				OwnerID:   inv.OwnerID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				RefType:   "invoice",
				RefID:     invoiceID,
				ActorID:   actorID,
			}); err != nil {
				return err
			}
		}
		inv.Items = append(inv.Items, added...)

		split := SplitTax(inv.Subtotal, inv.TaxRate, inv.Mode, profile.State, customerState)
		inv.ComputeTotals(split, profile.Billing.RoundOffTotal)
		return tx.UpdateInvoiceTotals(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  inv.OwnerID,
		ActorID:  actorID,
		Action:   "billing.items_added",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     map[string]any{"count": len(items)},
	})
	return inv, nil
}

// Complete finalises a draft invoice. Completing an already completed
// invoice is a no-op; a cancelled or returned invoice cannot be completed.
func (s *Service) Complete(ctx context.Context, scope shared.Scope, invoiceID, actorID int64) (*Invoice, error) {
	var inv *Invoice
	changed := false
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := scope.Check(inv.OwnerID); err != nil {
			return err
		}
		switch inv.Status {
		case StatusCompleted:
			return nil
		case StatusDraft:
			inv.Status = StatusCompleted
			changed = true
			return tx.UpdateInvoiceStatus(ctx, invoiceID, StatusCompleted)
		default:
			return fmt.Errorf("cannot complete a %s invoice: %w", inv.Status, shared.ErrConflict)
		}
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.recordAudit(ctx, shared.AuditLog{
			OwnerID:  inv.OwnerID,
			ActorID:  actorID,
			Action:   "billing.invoice_completed",
			Entity:   "invoice",
			EntityID: strconv.FormatInt(invoiceID, 10),
		})
	}
	return inv, nil
}

// Cancel voids a draft or completed invoice. Inventory consumed by the
// invoice stays consumed; the movement ledger keeps the trail for a manual
// adjustment if the goods really came back.
func (s *Service) Cancel(ctx context.Context, scope shared.Scope, invoiceID, actorID int64) (*Invoice, error) {
	var inv *Invoice
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := scope.Check(inv.OwnerID); err != nil {
			return err
		}
		switch inv.Status {
		case StatusDraft, StatusCompleted:
			inv.Status = StatusCancelled
			return tx.UpdateInvoiceStatus(ctx, invoiceID, StatusCancelled)
		default:
			return fmt.Errorf("cannot cancel a %s invoice: %w", inv.Status, shared.ErrConflict)
		}
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  inv.OwnerID,
		ActorID:  actorID,
		Action:   "billing.invoice_cancelled",
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
	})
	return inv, nil
}

// CreateReturnInput describes a goods return filing.
type CreateReturnInput struct {
	InvoiceID    int64
	Reason       string
	Items        []ReturnItem
	RefundAmount decimal.Decimal
	ActorID      int64
}

// CreateReturn files a return against a completed invoice. The invoice
// itself is not transitioned; the return carries its own approval ladder.
func (s *Service) CreateReturn(ctx context.Context, scope shared.Scope, in CreateReturnInput) (*Return, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("return reason required: %w", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("return needs at least one item: %w", shared.ErrValidation)
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("return quantity must be positive: %w", shared.ErrValidation)
		}
	}
	if in.RefundAmount.IsNegative() {
		return nil, fmt.Errorf("refund amount must not be negative: %w", shared.ErrValidation)
	}

	ret := &Return{
		InvoiceID:    in.InvoiceID,
		Number:       newReturnNumber(),
		Reason:       strings.TrimSpace(in.Reason),
		Status:       ReturnInitiated,
		RefundAmount: in.RefundAmount,
		Items:        in.Items,
		CreatedBy:    in.ActorID,
	}

	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if err := scope.Check(inv.OwnerID); err != nil {
			return err
		}
		if inv.Status != StatusCompleted && inv.Status != StatusReturned {
			return fmt.Errorf("cannot return against a %s invoice: %w", inv.Status, shared.ErrConflict)
		}
		ret.OwnerID = inv.OwnerID
		return tx.InsertReturn(ctx, ret)
	})
	if err != nil {
		return nil, err
	}

	if s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, "billing.return", strconv.FormatInt(ret.ID, 10), in.ActorID, ret.Reason); err != nil {
			s.logger.Error("record return submit", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  ret.OwnerID,
		ActorID:  in.ActorID,
		Action:   "billing.return_filed",
		Entity:   "return",
		EntityID: strconv.FormatInt(ret.ID, 10),
		Meta:     map[string]any{"number": ret.Number, "invoice_id": in.InvoiceID},
	})
	return ret, nil
}

// ReviewReturn moves an initiated return to approved or rejected.
func (s *Service) ReviewReturn(ctx context.Context, scope shared.Scope, returnID int64, approve bool, note string, actorID int64) (*Return, error) {
	next := ReturnRejected
	action := shared.ApprovalReject
	if approve {
		next = ReturnApproved
		action = shared.ApprovalApprove
	}

	var ret *Return
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		ret, err = tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if err := scope.Check(ret.OwnerID); err != nil {
			return err
		}
		if ret.Status != ReturnInitiated {
			return fmt.Errorf("return already %s: %w", ret.Status, shared.ErrConflict)
		}
		ret.Status = next
		return tx.UpdateReturnStatus(ctx, returnID, next)
	})
	if err != nil {
		return nil, err
	}

	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "billing.return",
			RefID:   strconv.FormatInt(returnID, 10),
			ActorID: actorID,
			Action:  action,
			Note:    note,
		}); err != nil {
			s.logger.Error("record return review", slog.Any("error", err))
		}
	}
	return ret, nil
}

// ProcessReturn restocks an approved return's items. Returned goods come
// back as loose stock; attributing them to their original batches is not
// attempted.
func (s *Service) ProcessReturn(ctx context.Context, scope shared.Scope, returnID, actorID int64) (*Return, error) {
	var ret *Return
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		var err error
		ret, err = tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if err := scope.Check(ret.OwnerID); err != nil {
			return err
		}
		if ret.Status != ReturnApproved {
			return fmt.Errorf("cannot process a %s return: %w", ret.Status, shared.ErrConflict)
		}

		inv := tx.Inventory()
		for _, item := range ret.Items {
			product, err := inv.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if _, err := inv.InsertMovement(ctx, inventory.Movement{
				OwnerID:   ret.OwnerID,
				ProductID: item.ProductID,
				Type:      inventory.MovementReturn,
				Quantity:  item.Quantity,
				RefType:   "return",
				RefID:     ret.ID,
				CreatedBy: actorID,
			}); err != nil {
				return err
			}
			if err := inv.UpdateProductStock(ctx, item.ProductID, product.Stock+item.Quantity); err != nil {
				return err
			}
		}
		ret.Status = ReturnProcessed
		return tx.UpdateReturnStatus(ctx, returnID, ReturnProcessed)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		OwnerID:  ret.OwnerID,
		ActorID:  actorID,
		Action:   "billing.return_processed",
		Entity:   "return",
		EntityID: strconv.FormatInt(returnID, 10),
	})
	return ret, nil
}

// Get returns an invoice with its items after a scope check.
func (s *Service) Get(ctx context.Context, scope shared.Scope, invoiceID int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := scope.Check(inv.OwnerID); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns a page of invoices inside scope.
func (s *Service) List(ctx context.Context, scope shared.Scope, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	if !scope.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	invoices, total, err := s.repo.ListInvoices(ctx, scope, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListReturns returns the returns filed against an invoice.
func (s *Service) ListReturns(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Return, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListReturns(ctx, scope, invoiceID)
}

func validateCart(items []CreateItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("invoice needs at least one item: %w", shared.ErrValidation)
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive: %w", i+1, shared.ErrValidation)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: unit price must not be negative: %w", i+1, shared.ErrValidation)
		}
		if item.DiscountPercent.IsNegative() {
			return fmt.Errorf("item %d: discount must not be negative: %w", i+1, shared.ErrValidation)
		}
	}
	return nil
}

func checkItemDiscount(snap settings.Snapshot, percent decimal.Decimal) error {
	if !snap.EnableDiscounts {
		return fmt.Errorf("discounts are disabled on this platform: %w", shared.ErrPolicyLimit)
	}
	if !snap.DiscountLevel.AllowsItem() {
		return fmt.Errorf("item-level discounts are not allowed (level %s): %w", snap.DiscountLevel, shared.ErrPolicyLimit)
	}
	if !snap.AllowPercentDiscount {
		return fmt.Errorf("percentage discounts are not allowed: %w", shared.ErrPolicyLimit)
	}
	if percent.GreaterThan(snap.MaxDiscountPercent) {
		return fmt.Errorf("discount %s%% exceeds platform maximum %s%%: %w",
			percent, snap.MaxDiscountPercent, shared.ErrPolicyLimit)
	}
	return nil
}

func adHocBillDiscount(snap settings.Snapshot, percent, amount, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if !snap.EnableDiscounts {
		return decimal.Zero, fmt.Errorf("discounts are disabled on this platform: %w", shared.ErrPolicyLimit)
	}
	if !snap.DiscountLevel.AllowsBill() {
		return decimal.Zero, fmt.Errorf("bill-level discounts are not allowed (level %s): %w", snap.DiscountLevel, shared.ErrPolicyLimit)
	}
	if percent.IsPositive() {
		if !snap.AllowPercentDiscount {
			return decimal.Zero, fmt.Errorf("percentage discounts are not allowed: %w", shared.ErrPolicyLimit)
		}
		if percent.GreaterThan(snap.MaxDiscountPercent) {
			return decimal.Zero, fmt.Errorf("discount %s%% exceeds platform maximum %s%%: %w",
				percent, snap.MaxDiscountPercent, shared.ErrPolicyLimit)
		}
		return subtotal.Mul(percent).Div(decimal.NewFromInt(100)), nil
	}
	if !snap.AllowFlatDiscount {
		return decimal.Zero, fmt.Errorf("flat discounts are not allowed: %w", shared.ErrPolicyLimit)
	}
	if amount.GreaterThan(snap.MaxDiscountAmount) {
		return decimal.Zero, fmt.Errorf("discount %s exceeds platform maximum %s: %w",
			amount, snap.MaxDiscountAmount, shared.ErrPolicyLimit)
	}
	return amount, nil
}

func newReturnNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("RET-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Error("record audit log", slog.Any("error", err), slog.String("action", log.Action))
	}
}
