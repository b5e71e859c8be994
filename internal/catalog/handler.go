package catalog

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

// Handler manages master data endpoints.
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

// MountProductRoutes registers product routes.
func (h *Handler) MountProductRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageCatalog))
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Get("/{id}", h.showProduct)
	r.Put("/{id}", h.updateProduct)
}

// MountCustomerRoutes registers customer routes.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageCatalog))
	r.Get("/", h.listCustomers)
	r.Post("/", h.createCustomer)
	r.Get("/{id}", h.showCustomer)
}

type productPayload struct {
	ID           int64           `json:"id,omitempty"`
	Code         string          `json:"code"`
	Barcode      string          `json:"barcode,omitempty"`
	Name         string          `json:"name" validate:"required"`
	Unit         string          `json:"unit,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	ReorderLevel int             `json:"reorder_level"`
	Stock        int             `json:"stock"`
	IsActive     bool            `json:"is_active"`
	IsLowStock   bool            `json:"is_low_stock,omitempty"`
}

func toProductPayload(p Product) productPayload {
	return productPayload{
		ID:           p.ID,
		Code:         p.Code,
		Barcode:      p.Barcode,
		Name:         p.Name,
		Unit:         p.Unit,
		CostPrice:    p.CostPrice,
		UnitPrice:    p.UnitPrice,
		TaxRate:      p.TaxRate,
		ReorderLevel: p.ReorderLevel,
		Stock:        p.Stock,
		IsActive:     p.IsActive,
		IsLowStock:   p.IsLowStock(),
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	products, pg, err := h.service.ListProducts(r.Context(), scope, page, perPage)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payloads := make([]productPayload, 0, len(products))
	for _, p := range products {
		payloads = append(payloads, toProductPayload(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   payloads,
		"pagination": pg,
	})
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	p, err := h.service.GetProduct(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductPayload(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body productPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), scope, Product{
		OwnerID:      scope.OwnerID,
		Code:         body.Code,
		Barcode:      body.Barcode,
		Name:         body.Name,
		Unit:         body.Unit,
		CostPrice:    body.CostPrice,
		UnitPrice:    body.UnitPrice,
		TaxRate:      body.TaxRate,
		ReorderLevel: body.ReorderLevel,
		Stock:        body.Stock,
		IsActive:     true,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("product created", slog.Int64("product_id", p.ID), slog.Int64("actor_id", tenancy.ActorID(r)))
	httpx.JSON(w, http.StatusCreated, toProductPayload(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body productPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), scope, Product{
		ID:           id,
		Code:         body.Code,
		Barcode:      body.Barcode,
		Name:         body.Name,
		Unit:         body.Unit,
		CostPrice:    body.CostPrice,
		UnitPrice:    body.UnitPrice,
		TaxRate:      body.TaxRate,
		ReorderLevel: body.ReorderLevel,
		IsActive:     body.IsActive,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProductPayload(p))
}

type customerPayload struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	State    string `json:"state,omitempty"`
	Address  string `json:"address,omitempty"`
	GSTIN    string `json:"gstin,omitempty"`
	IsActive bool   `json:"is_active"`
}

func toCustomerPayload(c Customer) customerPayload {
	return customerPayload{
		ID:       c.ID,
		Name:     c.Name,
		Phone:    c.Phone,
		Email:    c.Email,
		State:    c.State,
		Address:  c.Address,
		GSTIN:    c.GSTIN,
		IsActive: c.IsActive,
	}
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	customers, pg, err := h.service.ListCustomers(r.Context(), scope, page, perPage)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payloads := make([]customerPayload, 0, len(customers))
	for _, c := range customers {
		payloads = append(payloads, toCustomerPayload(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customers":  payloads,
		"pagination": pg,
	})
}

func (h *Handler) showCustomer(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	c, err := h.service.GetCustomer(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCustomerPayload(c))
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body customerPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), scope, Customer{
		OwnerID:  scope.OwnerID,
		Name:     body.Name,
		Phone:    body.Phone,
		Email:    body.Email,
		State:    body.State,
		Address:  body.Address,
		GSTIN:    body.GSTIN,
		IsActive: true,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCustomerPayload(c))
}
