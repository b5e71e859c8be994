package billing

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

// Handler manages invoice endpoints.
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

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageInvoices))
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/items", h.addItems)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
	r.Get("/{id}/returns", h.listReturns)
	r.Post("/{id}/returns", h.createReturn)
	r.Post("/returns/{returnID}/review", h.reviewReturn)
	r.Post("/returns/{returnID}/process", h.processReturn)
}

type itemPayload struct {
	ProductID       int64            `json:"product_id"`
	Name            string           `json:"name" validate:"required"`
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
}

func (p itemPayload) toInput() CreateItemInput {
	return CreateItemInput{
		ProductID:       p.ProductID,
		Name:            p.Name,
		Quantity:        p.Quantity,
		UnitPrice:       p.UnitPrice,
		DiscountPercent: p.DiscountPercent,
		TaxRate:         p.TaxRate,
	}
}

type createPayload struct {
	CustomerID      int64            `json:"customer_id"`
	Mode            string           `json:"mode" validate:"omitempty,oneof=with_gst without_gst"`
	TaxRate         *decimal.Decimal `json:"tax_rate,omitempty"`
	DiscountCode    string           `json:"discount_code"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	Notes           string           `json:"notes"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	Items           []itemPayload    `json:"items" validate:"required,min=1,dive"`
}

type invoicePayload struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number"`
	CustomerID      int64           `json:"customer_id,omitempty"`
	Mode            string          `json:"mode"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	CGST            decimal.Decimal `json:"cgst"`
	SGST            decimal.Decimal `json:"sgst"`
	IGST            decimal.Decimal `json:"igst"`
	Total           decimal.Decimal `json:"total"`
	Paid            decimal.Decimal `json:"paid"`
	PaymentStatus   string          `json:"payment_status"`
	Status          string          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Items           []InvoiceItem   `json:"items,omitempty"`
}

func toInvoicePayload(inv *Invoice) invoicePayload {
	return invoicePayload{
		ID:             inv.ID,
		Number:         inv.Number,
		CustomerID:     inv.CustomerID,
		Mode:           string(inv.Mode),
		Subtotal:       inv.Subtotal,
		DiscountAmount: inv.DiscountAmount,
		TaxRate:        inv.TaxRate,
		CGST:           inv.CGST,
		SGST:           inv.SGST,
		IGST:           inv.IGST,
		Total:          inv.Total,
		Paid:           inv.Paid,
		PaymentStatus:  string(inv.PaymentStatus),
		Status:         string(inv.Status),
		Notes:          inv.Notes,
		InvoiceDate:    inv.InvoiceDate,
		DueDate:        inv.DueDate,
		Items:          inv.Items,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body createPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := CreateInvoiceInput{
		OwnerID:         scope.OwnerID,
		CustomerID:      body.CustomerID,
		Mode:            BillingMode(body.Mode),
		TaxRate:         body.TaxRate,
		DiscountCode:    body.DiscountCode,
		DiscountPercent: body.DiscountPercent,
		DiscountAmount:  body.DiscountAmount,
		Notes:           body.Notes,
		DueDate:         body.DueDate,
		PaidAmount:      body.PaidAmount,
		ActorID:         tenancy.ActorID(r),
	}
	for _, item := range body.Items {
		in.Items = append(in.Items, item.toInput())
	}

	inv, err := h.service.Create(r.Context(), scope, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoicePayload(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)

	invoices, pagination, err := h.service.List(r.Context(), scope, ListFilter{
		Status:        InvoiceStatus(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("payment_status")),
		CustomerID:    customerID,
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payloads := make([]invoicePayload, 0, len(invoices))
	for i := range invoices {
		payloads = append(payloads, toInvoicePayload(&invoices[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": payloads, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	inv, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoicePayload(inv))
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body struct {
		Items []itemPayload `json:"items" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]CreateItemInput, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, item.toInput())
	}
	inv, err := h.service.AddItems(r.Context(), scope, id, items, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoicePayload(inv))
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	inv, err := h.service.Complete(r.Context(), scope, id, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoicePayload(inv))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	inv, err := h.service.Cancel(r.Context(), scope, id, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoicePayload(inv))
}

type returnPayload struct {
	Reason       string          `json:"reason" validate:"required"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Items        []struct {
		ProductID int64 `json:"product_id" validate:"required,gt=0"`
		Quantity  int   `json:"quantity" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	invoiceID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body returnPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateReturnInput{
		InvoiceID:    invoiceID,
		Reason:       body.Reason,
		RefundAmount: body.RefundAmount,
		ActorID:      tenancy.ActorID(r),
	}
	for _, item := range body.Items {
		in.Items = append(in.Items, ReturnItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	ret, err := h.service.CreateReturn(r.Context(), scope, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	invoiceID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	returns, err := h.service.ListReturns(r.Context(), scope, invoiceID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"returns": returns})
}

func (h *Handler) reviewReturn(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	returnID, _ := strconv.ParseInt(chi.URLParam(r, "returnID"), 10, 64)
	var body struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	ret, err := h.service.ReviewReturn(r.Context(), scope, returnID, body.Approve, body.Note, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) processReturn(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	returnID, _ := strconv.ParseInt(chi.URLParam(r, "returnID"), 10, 64)
	ret, err := h.service.ProcessReturn(r.Context(), scope, returnID, tenancy.ActorID(r))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}
