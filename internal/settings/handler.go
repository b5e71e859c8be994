package settings

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/shared"
)

// Handler exposes the platform settings endpoints.
type Handler struct {
	service *Service
	guard   Authorizer
	logger  *slog.Logger
}

// Authorizer gates settings routes behind a capability.
type Authorizer interface {
	Require(capability string) func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, guard Authorizer, logger *slog.Logger) *Handler {
	return &Handler{service: service, guard: guard, logger: logger}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.Require(shared.CapManageSettings))
	r.Get("/", h.show)
	r.Put("/", h.update)
}

type settingsPayload struct {
	DefaultTaxRate        decimal.Decimal `json:"default_tax_rate"`
	EnableDiscounts       bool            `json:"enable_discounts"`
	AllowPercentDiscount  bool            `json:"allow_percent_discount"`
	AllowFlatDiscount     bool            `json:"allow_flat_discount"`
	MaxDiscountPercent    decimal.Decimal `json:"max_discount_percent"`
	MaxDiscountAmount     decimal.Decimal `json:"max_discount_amount"`
	DiscountLevel         string          `json:"discount_level"`
	InvoicePrefix         string          `json:"invoice_prefix"`
	InvoiceStartingNumber int64           `json:"invoice_starting_number"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(snap))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var body settingsPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	level := DiscountLevel(body.DiscountLevel)
	switch level {
	case DiscountLevelItem, DiscountLevelBill, DiscountLevelBoth:
	default:
		httpx.RespondError(w, h.logger, fmt.Errorf("unknown discount level %q: %w", body.DiscountLevel, shared.ErrValidation))
		return
	}
	snap := Snapshot{
		DefaultTaxRate:        body.DefaultTaxRate,
		EnableDiscounts:       body.EnableDiscounts,
		AllowPercentDiscount:  body.AllowPercentDiscount,
		AllowFlatDiscount:     body.AllowFlatDiscount,
		MaxDiscountPercent:    body.MaxDiscountPercent,
		MaxDiscountAmount:     body.MaxDiscountAmount,
		DiscountLevel:         level,
		InvoicePrefix:         body.InvoicePrefix,
		InvoiceStartingNumber: body.InvoiceStartingNumber,
	}
	if err := h.service.Save(r.Context(), snap); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(snap))
}

func toPayload(snap Snapshot) settingsPayload {
	return settingsPayload{
		DefaultTaxRate:        snap.DefaultTaxRate,
		EnableDiscounts:       snap.EnableDiscounts,
		AllowPercentDiscount:  snap.AllowPercentDiscount,
		AllowFlatDiscount:     snap.AllowFlatDiscount,
		MaxDiscountPercent:    snap.MaxDiscountPercent,
		MaxDiscountAmount:     snap.MaxDiscountAmount,
		DiscountLevel:         string(snap.DiscountLevel),
		InvoicePrefix:         snap.InvoicePrefix,
		InvoiceStartingNumber: snap.InvoiceStartingNumber,
	}
}
