package discount

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/rbac"
	"github.com/arka-retail/arka/internal/shared"
	"github.com/arka-retail/arka/internal/tenancy"
)

// Handler manages discount rule endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validate: validator.New()}
}

// MountRoutes registers discount routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageDiscounts))
	r.Get("/", h.listRules)
	r.Post("/", h.createRule)
	r.Put("/{id}", h.updateRule)
	r.Get("/logs", h.listLogs)
}

type rulePayload struct {
	ID               int64           `json:"id,omitempty"`
	Name             string          `json:"name" validate:"required"`
	Code             string          `json:"code" validate:"required"`
	Type             string          `json:"type" validate:"required,oneof=percentage flat"`
	Value            decimal.Decimal `json:"value"`
	Level            string          `json:"level" validate:"required,oneof=item bill"`
	MinOrderValue    decimal.Decimal `json:"min_order_value"`
	MaxDiscountValue decimal.Decimal `json:"max_discount_value"`
	ValidFrom        *time.Time      `json:"valid_from,omitempty"`
	ValidTo          *time.Time      `json:"valid_to,omitempty"`
	IsActive         bool            `json:"is_active"`
	RequiresApproval bool            `json:"requires_approval"`
}

func toRulePayload(r Rule) rulePayload {
	return rulePayload{
		ID:               r.ID,
		Name:             r.Name,
		Code:             r.Code,
		Type:             string(r.Type),
		Value:            r.Value,
		Level:            string(r.Level),
		MinOrderValue:    r.MinOrderValue,
		MaxDiscountValue: r.MaxDiscountValue,
		ValidFrom:        r.ValidFrom,
		ValidTo:          r.ValidTo,
		IsActive:         r.IsActive,
		RequiresApproval: r.RequiresApproval,
	}
}

func (p rulePayload) toRule(ownerID, actorID int64) Rule {
	return Rule{
		ID:               p.ID,
		OwnerID:          ownerID,
		Name:             p.Name,
		Code:             p.Code,
		Type:             RuleType(p.Type),
		Value:            p.Value,
		Level:            Level(p.Level),
		MinOrderValue:    p.MinOrderValue,
		MaxDiscountValue: p.MaxDiscountValue,
		ValidFrom:        p.ValidFrom,
		ValidTo:          p.ValidTo,
		IsActive:         p.IsActive,
		RequiresApproval: p.RequiresApproval,
		CreatedBy:        actorID,
	}
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	rules, err := h.service.ListRules(r.Context(), scope)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payloads := make([]rulePayload, 0, len(rules))
	for _, rule := range rules {
		payloads = append(payloads, toRulePayload(rule))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": payloads})
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body rulePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.CreateRule(r.Context(), scope, body.toRule(scope.OwnerID, tenancy.ActorID(r)))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRulePayload(rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body rulePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule := body.toRule(scope.OwnerID, tenancy.ActorID(r))
	rule.ID = id
	updated, err := h.service.UpdateRule(r.Context(), scope, rule)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRulePayload(updated))
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	invoiceID, _ := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64)
	if invoiceID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice_id required")
		return
	}
	logs, err := h.service.ListLogs(r.Context(), scope, invoiceID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": logs})
}
