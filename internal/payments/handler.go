package payments

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/rbac"
	"github.com/arka-retail/arka/internal/shared"
	"github.com/arka-retail/arka/internal/tenancy"
)

// Handler manages payment endpoints.
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

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManagePayments))
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
	r.Get("/{id}/refunds", h.listRefunds)
	r.Post("/{id}/refunds", h.refund)
}

type paymentPayload struct {
	InvoiceID  int64           `json:"invoice_id" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method" validate:"required,oneof=cash card upi bank_transfer cheque"`
	GatewayRef string          `json:"gateway_ref"`
	Notes      string          `json:"notes"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body paymentPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), scope, RecordPaymentInput{
		InvoiceID:  body.InvoiceID,
		Amount:     body.Amount,
		Method:     Method(body.Method),
		GatewayRef: body.GatewayRef,
		Notes:      body.Notes,
		ActorID:    tenancy.ActorID(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	invoiceID, _ := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64)
	if invoiceID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice_id required")
		return
	}
	payments, err := h.service.List(r.Context(), scope, invoiceID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	payment, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

type refundPayload struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	paymentID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body refundPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	refund, err := h.service.RecordRefund(r.Context(), scope, RecordRefundInput{
		PaymentID: paymentID,
		Amount:    body.Amount,
		Reason:    body.Reason,
		ActorID:   tenancy.ActorID(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, refund)
}

func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	paymentID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	refunds, err := h.service.ListRefunds(r.Context(), scope, paymentID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"refunds": refunds})
}
