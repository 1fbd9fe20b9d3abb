// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"ledger/internal/app"
	"ledger/internal/infrastructure/http/v1/dto"
	"ledger/internal/infrastructure/http/v1/handlers"
	"ledger/internal/infrastructure/http/v1/middleware"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// App holds the assembled services
	App *app.App

	// Pool backs the health checks
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *limiter.Limiter

	CORSAllowedOrigins []string

	// IdempotencyTTL enables idempotency middleware when positive
	IdempotencyTTL time.Duration

	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	if cfg.RateLimiter != nil {
		router.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Database(cfg.App.TxManager)) // 1. TxManager for repositories
	v1.Use(middleware.UserContext())               // 2. Caller identity for audit fields
	if cfg.IdempotencyTTL > 0 {
		v1.Use(middleware.Idempotency(postgres.NewIdempotencyStore(cfg.App.TxManager, cfg.IdempotencyTTL)))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(v1, base, cfg.App)
	registerLedgerRoutes(v1, base, cfg.App)

	return router, nil
}

// registerCatalogRoutes registers the master data endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	catalogs := rg.Group("/catalogs")

	// --- CURRENCIES ---
	{
		handler := handlers.NewCurrencyHandler(base, a.Currencies, a.Provider)
		group := catalogs.Group("/currencies")
		RegisterCatalogRoutes(group, handler)
		group.GET("/:id/rates", handler.Rates)
		group.POST("/:id/rates", handler.SetRate)

		rg.GET("/currencies/convert", handler.Convert)
	}

	RegisterCatalogRoutes(catalogs.Group("/companies"), handlers.NewCompanyHandler(base, a.Companies))
	RegisterCatalogRoutes(catalogs.Group("/accounts"), handlers.NewAccountHandler(base, a.Accounts))
	RegisterCatalogRoutes(catalogs.Group("/journals"), handlers.NewJournalHandler(base, a.Journals))
	RegisterCatalogRoutes(catalogs.Group("/taxes"), handlers.NewTaxCatalogHandler(base, a.Taxes))
	RegisterCatalogRoutes(catalogs.Group("/payment-terms"), handlers.NewPaymentTermHandler(base, a.PaymentTerms))
	RegisterCatalogRoutes(catalogs.Group("/cash-roundings"), handlers.NewCashRoundingHandler(base, a.CashRoundings))

	taxHandler := handlers.NewTaxHandler(base, a.Provider)
	rg.POST("/taxes/compute", taxHandler.Compute)
}

// registerLedgerRoutes registers moves and reconciliation endpoints.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	moveHandler := handlers.NewMoveHandler(base, a.Moves, a.Reconcile, a.Audit)
	RegisterMoveRoutes(rg.Group("/moves"), moveHandler)

	reconcileHandler := handlers.NewReconcileHandler(base, a.Reconcile, a.Reconciles)
	rec := rg.Group("/reconcile")
	{
		rec.POST("", reconcileHandler.Reconcile)
		rec.POST("/remove", reconcileHandler.Remove)
		rec.POST("/reverse", reconcileHandler.ReverseMoves)
		rec.POST("/accounts/:id/auto", reconcileHandler.AutoAccount)
	}
	rg.GET("/lines/:id/partials", reconcileHandler.LinePartials)
}
