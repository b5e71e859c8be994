package company

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/rbac"
	"github.com/arka-retail/arka/internal/shared"
)

// Handler manages company profile endpoints.
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

// MountRoutes registers company profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageSettings))
	r.Get("/", h.show)
	r.Put("/", h.update)
}

type profilePayload struct {
	Name          string `json:"name" validate:"required"`
	Code          string `json:"code"`
	GSTIN         string `json:"gstin"`
	State         string `json:"state"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email" validate:"omitempty,email"`
	RoundOffTotal bool   `json:"round_off_total"`
}

func toProfilePayload(p Profile) profilePayload {
	return profilePayload{
		Name:          p.Name,
		Code:          p.Code,
		GSTIN:         p.GSTIN,
		State:         p.State,
		Address:       p.Address,
		Phone:         p.Phone,
		Email:         p.Email,
		RoundOffTotal: p.Billing.RoundOffTotal,
	}
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	profile, err := h.service.Get(r.Context(), scope, scope.OwnerID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfilePayload(profile))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body profilePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	profile, err := h.service.Save(r.Context(), scope, Profile{
		OwnerID: scope.OwnerID,
		Name:    body.Name,
		Code:    body.Code,
		GSTIN:   body.GSTIN,
		State:   body.State,
		Address: body.Address,
		Phone:   body.Phone,
		Email:   body.Email,
		Billing: BillingSettings{RoundOffTotal: body.RoundOffTotal},
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfilePayload(profile))
}
