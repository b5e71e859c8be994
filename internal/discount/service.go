package discount

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arka-retail/arka/internal/settings"
	"github.com/arka-retail/arka/internal/shared"
)

// RepositoryPort defines persistence operations for discount rules.
type RepositoryPort interface {
	GetRule(ctx context.Context, id int64) (Rule, error)
	GetRuleByCode(ctx context.Context, ownerID int64, code string) (Rule, error)
	ListRules(ctx context.Context, scope shared.Scope) ([]Rule, error)
	CreateRule(ctx context.Context, r Rule) (Rule, error)
	UpdateRule(ctx context.Context, r Rule) (Rule, error)
	ListLogs(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Log, error)
}

// SettingsPort supplies the platform policy snapshot.
type SettingsPort interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// ApprovalPort records the approval trail of rules that require it.
type ApprovalPort interface {
	EnsureSubmit(ctx context.Context, module, ref string, actorID int64, note string) error
}

// Service orchestrates discount rule management.
type Service struct {
	repo      RepositoryPort
	settings  SettingsPort
	approvals ApprovalPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, settingsPort SettingsPort, approvals ApprovalPort) *Service {
	return &Service{repo: repo, settings: settingsPort, approvals: approvals}
}

// CreateRule validates a rule against the platform policy snapshot and
// stores it. Violations are rejected naming the exceeded limit, never
// silently clamped.
func (s *Service) CreateRule(ctx context.Context, scope shared.Scope, r Rule) (Rule, error) {
	if err := scope.Check(r.OwnerID); err != nil {
		return Rule{}, err
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return Rule{}, err
	}
	if err := validateRule(r, snap); err != nil {
		return Rule{}, err
	}

	created, err := s.repo.CreateRule(ctx, r)
	if err != nil {
		return Rule{}, err
	}
	if created.RequiresApproval && s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, "discount.rule", strconv.FormatInt(created.ID, 10), r.CreatedBy, "rule created"); err != nil {
			return Rule{}, err
		}
	}
	return created, nil
}

// UpdateRule re-validates and stores rule changes. The policy snapshot in
// force at update time applies; existing rules are not retro-checked.
func (s *Service) UpdateRule(ctx context.Context, scope shared.Scope, r Rule) (Rule, error) {
	current, err := s.repo.GetRule(ctx, r.ID)
	if err != nil {
		return Rule{}, err
	}
	if err := scope.Check(current.OwnerID); err != nil {
		return Rule{}, err
	}
	r.OwnerID = current.OwnerID
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return Rule{}, err
	}
	if err := validateRule(r, snap); err != nil {
		return Rule{}, err
	}
	return s.repo.UpdateRule(ctx, r)
}

// ListRules returns the rules visible in scope.
func (s *Service) ListRules(ctx context.Context, scope shared.Scope) ([]Rule, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListRules(ctx, scope)
}

// Resolve finds an applicable rule by code for invoice-time application.
// The validity window is re-checked here; platform ceilings were enforced
// when the rule was written.
func (s *Service) Resolve(ctx context.Context, scope shared.Scope, ownerID int64, code string) (Rule, error) {
	if err := scope.Check(ownerID); err != nil {
		return Rule{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Rule{}, fmt.Errorf("discount code required: %w", shared.ErrValidation)
	}
	rule, err := s.repo.GetRuleByCode(ctx, ownerID, code)
	if err != nil {
		return Rule{}, err
	}
	if !rule.ValidAt(time.Now().UTC()) {
		return Rule{}, fmt.Errorf("discount %s is not currently valid: %w", code, shared.ErrValidation)
	}
	return rule, nil
}

// ListLogs returns the application trail for an invoice.
func (s *Service) ListLogs(ctx context.Context, scope shared.Scope, invoiceID int64) ([]Log, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("unresolved tenant scope: %w", shared.ErrPermission)
	}
	return s.repo.ListLogs(ctx, scope, invoiceID)
}

func validateRule(r Rule, snap settings.Snapshot) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("rule code required: %w", shared.ErrValidation)
	}
	if !r.Value.IsPositive() {
		return fmt.Errorf("rule value must be positive: %w", shared.ErrValidation)
	}
	if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
		return fmt.Errorf("validity window ends before it starts: %w", shared.ErrValidation)
	}

	if !snap.EnableDiscounts {
		return fmt.Errorf("discounts are disabled on this platform: %w", shared.ErrPolicyLimit)
	}

	switch r.Type {
	case TypePercentage:
		if !snap.AllowPercentDiscount {
			return fmt.Errorf("percentage discounts are not allowed: %w", shared.ErrPolicyLimit)
		}
		if r.Value.GreaterThan(snap.MaxDiscountPercent) {
			return fmt.Errorf("discount %s%% exceeds platform maximum %s%%: %w",
				r.Value, snap.MaxDiscountPercent, shared.ErrPolicyLimit)
		}
	case TypeFlat:
		if !snap.AllowFlatDiscount {
			return fmt.Errorf("flat discounts are not allowed: %w", shared.ErrPolicyLimit)
		}
		if r.Value.GreaterThan(snap.MaxDiscountAmount) {
			return fmt.Errorf("discount %s exceeds platform maximum %s: %w",
				r.Value, snap.MaxDiscountAmount, shared.ErrPolicyLimit)
		}
	default:
		return fmt.Errorf("unknown rule type %q: %w", r.Type, shared.ErrValidation)
	}

	switch r.Level {
	case LevelItem:
		if !snap.DiscountLevel.AllowsItem() {
			return fmt.Errorf("item-level discounts are not allowed (level %s): %w",
				snap.DiscountLevel, shared.ErrPolicyLimit)
		}
	case LevelBill:
		if !snap.DiscountLevel.AllowsBill() {
			return fmt.Errorf("bill-level discounts are not allowed (level %s): %w",
				snap.DiscountLevel, shared.ErrPolicyLimit)
		}
	default:
		return fmt.Errorf("unknown rule level %q: %w", r.Level, shared.ErrValidation)
	}

	return nil
}
