package inventory

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

// Handler manages inventory endpoints.
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

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageInventory))
	r.Get("/batches", h.listBatches)
	r.Post("/batches", h.receiveBatch)
	r.Get("/movements", h.listMovements)
	r.Post("/adjustments", h.adjustStock)
	r.Post("/sync", h.syncStock)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id required")
		return
	}
	batches, err := h.service.ListBatches(r.Context(), scope, productID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

type receiveBatchRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	BatchNumber     string          `json:"batch_number" validate:"required"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ManufactureDate *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	PurchaseRef     string          `json:"purchase_ref,omitempty"`
}

func (h *Handler) receiveBatch(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body receiveBatchRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.ReceiveBatch(r.Context(), scope, ReceiveBatchInput{
		OwnerID:         scope.OwnerID,
		ProductID:       body.ProductID,
		BatchNumber:     body.BatchNumber,
		Quantity:        body.Quantity,
		UnitCost:        body.UnitCost,
		ManufactureDate: body.ManufactureDate,
		ExpiryDate:      body.ExpiryDate,
		PurchaseRef:     body.PurchaseRef,
		ActorID:         tenancy.ActorID(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id required")
		return
	}
	movements, err := h.service.ListMovements(r.Context(), scope, productID, limit)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

type adjustRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Delta     int    `json:"delta" validate:"required"`
	Note      string `json:"note,omitempty"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body adjustRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.AdjustStock(r.Context(), scope, AdjustInput{
		OwnerID:   scope.OwnerID,
		ProductID: body.ProductID,
		Delta:     body.Delta,
		Note:      body.Note,
		ActorID:   tenancy.ActorID(r),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "adjusted"})
}

func (h *Handler) syncStock(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	ownerID := scope.OwnerID
	if scope.SuperAdmin {
		ownerID, _ = strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
		if ownerID <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "owner_id required for platform sync")
			return
		}
	}
	report, err := h.service.ReconcileStock(r.Context(), scope, ownerID, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
