package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arka-retail/arka/internal/app"
	"github.com/arka-retail/arka/internal/auth"
	"github.com/arka-retail/arka/internal/billing"
	"github.com/arka-retail/arka/internal/catalog"
	"github.com/arka-retail/arka/internal/company"
	"github.com/arka-retail/arka/internal/discount"
	"github.com/arka-retail/arka/internal/inventory"
	"github.com/arka-retail/arka/internal/payments"
	"github.com/arka-retail/arka/internal/platform/cache"
	"github.com/arka-retail/arka/internal/platform/db"
	"github.com/arka-retail/arka/internal/rbac"
	"github.com/arka-retail/arka/internal/settings"
	"github.com/arka-retail/arka/internal/shared"
	"github.com/arka-retail/arka/internal/tenancy"
)

// customerStates adapts the catalog service to the tax calculator's view of
// a customer.
type customerStates struct {
	catalog *catalog.Service
}

func (c customerStates) State(ctx context.Context, ownerID, customerID int64) (string, error) {
	cust, err := c.catalog.GetCustomer(ctx, shared.OwnerScope(ownerID), customerID)
	if err != nil {
		return "", err
	}
	return cust.State, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "arka_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	scopeResolver := tenancy.NewResolver(tenancy.NewRepository(dbpool))
	scopeMiddleware := tenancy.NewMiddleware(scopeResolver, logger)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacGuard := rbac.NewGuard(rbacRepo)
	rbacMiddleware := rbac.Middleware{Guard: rbacGuard, Logger: logger}
	rolesHandler := rbac.NewHandler(logger, rbac.NewService(rbacRepo), rbacMiddleware)

	settingsService := settings.NewService(dbpool, redisClient, cfg.SettingsCacheTTL)
	settingsHandler := settings.NewHandler(settingsService, rbacMiddleware, logger)

	companyRepo := company.NewRepository(dbpool)
	companyService := company.NewService(companyRepo)
	companyHandler := company.NewHandler(logger, companyService, rbacMiddleware)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	stockEngine := inventory.NewEngine()
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), stockEngine, auditLogger, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	discountService := discount.NewService(discount.NewRepository(dbpool), settingsService, approvalRecorder)
	discountHandler := discount.NewHandler(logger, discountService, rbacMiddleware)

	billingService := billing.NewService(billing.ServiceParams{
		Repo:      billing.NewRepository(dbpool),
		Engine:    stockEngine,
		Settings:  settingsService,
		Companies: companyRepo,
		Customers: customerStates{catalog: catalogService},
		Discounts: discountService,
		Audit:     auditLogger,
		Approvals: approvalRecorder,
		Logger:    logger,
	})
	billingHandler := billing.NewHandler(logger, billingService, rbacMiddleware)

	paymentsService := payments.NewService(payments.NewRepository(dbpool), idempotencyStore, auditLogger, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,

		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		CompanyHandler:   companyHandler,
		InventoryHandler: inventoryHandler,
		BillingHandler:   billingHandler,
		DiscountHandler:  discountHandler,
		PaymentsHandler:  paymentsHandler,
		SettingsHandler:  settingsHandler,
		RolesHandler:     rolesHandler,

		ScopeMiddleware: scopeMiddleware,
		RBACMiddleware:  rbacMiddleware,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
