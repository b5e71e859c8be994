package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arka-retail/arka/internal/platform/httpx"
	"github.com/arka-retail/arka/internal/shared"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validate: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(shared.CapManageSettings))
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/assign", h.assign)
	r.Post("/{id}/remove", h.remove)
}

type rolePayload struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type memberPayload struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	roles, err := h.service.ListRoles(r.Context(), scope)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, _ := shared.ScopeFromContext(r.Context())
	var body rolePayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), scope, body.Name, body.Description)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, h.service.AssignRole)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	h.member(w, r, h.service.RemoveRole)
}

func (h *Handler) member(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, scope shared.Scope, userID, roleID int64) error) {
	scope, _ := shared.ScopeFromContext(r.Context())
	roleID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var body memberPayload
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := op(r.Context(), scope, body.UserID, roleID); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
