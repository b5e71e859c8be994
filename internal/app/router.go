package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/arka-retail/arka/internal/auth"
	"github.com/arka-retail/arka/internal/billing"
	"github.com/arka-retail/arka/internal/catalog"
	"github.com/arka-retail/arka/internal/company"
	"github.com/arka-retail/arka/internal/discount"
	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/payments"
	"github.com/arka-retail/arka/internal/rbac"
	"github.com/arka-retail/arka/internal/settings"
	"github.com/arka-retail/arka/internal/shared"
	"github.com/arka-retail/arka/internal/tenancy"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CompanyHandler   *company.Handler
	InventoryHandler *inventory.Handler
	BillingHandler   *billing.Handler
	DiscountHandler  *discount.Handler
	PaymentsHandler  *payments.Handler
	SettingsHandler  *settings.Handler
	RolesHandler     *rbac.Handler

	ScopeMiddleware tenancy.Middleware
	RBACMiddleware  rbac.Middleware
}

// NewRouter constructs the chi.Router serving the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything under /api requires a logged-in user with a resolved
	// tenant scope. Capability checks are per-route inside each handler.
	r.Route("/api", func(r chi.Router) {
		r.Use(params.ScopeMiddleware.Resolve)

		r.Route("/company", params.CompanyHandler.MountRoutes)
		r.Route("/products", params.CatalogHandler.MountProductRoutes)
		r.Route("/customers", params.CatalogHandler.MountCustomerRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/invoices", params.BillingHandler.MountRoutes)
		r.Route("/discounts", params.DiscountHandler.MountRoutes)
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
	})

	return r
}
