package router

import (
	"context"
	"time"

	"trinity/internal/authz"
	"trinity/internal/config"
	_ "trinity/docs"
	"trinity/internal/handler"
	"trinity/internal/infra"
	"trinity/internal/metrics"
	"trinity/internal/middleware"
	"trinity/internal/model"
	"trinity/internal/repository"
	"trinity/internal/service"
	"trinity/internal/stocklock"
	"trinity/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the process-wide resources the HTTP layer is built from.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	MailCB  *infra.CircuitBreaker
	Metrics *metrics.Metrics
	Policy  *authz.Enforcer
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// Background helpers (rate limiter purge) stop when ctx is done.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	invoiceCfg, err := service.InvoiceConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	policy := deps.Policy
	if policy == nil {
		if policy, err = authz.NewEnforcer(); err != nil {
			return nil, err
		}
	}

	r := gin.New()

	limiter := middleware.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.RunPurge(ctx, 5*time.Minute)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Handler("too many requests, try again shortly"))

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(deps.DB)
	invoiceRepo := repository.NewInvoiceRepository(deps.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)

	// Receipt jobs are queued only when Redis is available.
	var receipts service.ReceiptDispatcher
	if deps.Redis != nil {
		receipts = worker.NewDispatcher(deps.Redis)
	}
	invoiceSvc := service.NewInvoiceService(service.InvoiceDeps{
		Invoices:   invoiceRepo,
		Products:   repository.NewProductRepository(deps.DB),
		Customers:  repository.NewCustomerRepository(deps.DB),
		Sequences:  repository.NewInvoiceSequenceRepository(),
		Movements:  repository.NewStockMovementRepository(deps.DB),
		Locks:      stocklock.New(invoiceCfg.LockTimeout),
		Policy:     policy,
		Dispatcher: receipts,
		Metrics:    deps.Metrics,
	}, invoiceCfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	invoicesH := handler.NewInvoicesHandler(invoiceSvc, cfg.StoreName)
	itemsH := handler.NewInvoiceItemsHandler(invoiceSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis, deps.MailCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public); login gets a tighter per-IP budget.
	loginLimiter := middleware.NewLimiter(20, time.Minute)
	go loginLimiter.RunPurge(ctx, 5*time.Minute)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Handler("too many login attempts, try again in a minute"), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. RequireRole keeps unknown roles out; writes are
	// policy-checked before the body is bound. Row scoping lives in the service.
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW, middleware.RequireRole(model.RoleStaff, model.RoleCustomer))
	{
		inv := v1.Group("/invoices")
		{
			inv.POST("/", invoicesH.Create)
			inv.GET("/", invoicesH.List)
			inv.GET("/:id/", invoicesH.Get)
			inv.PUT("/:id/", middleware.RequirePolicy(policy, authz.ActionInvoiceUpdate), invoicesH.Update)
			inv.PATCH("/:id/", middleware.RequirePolicy(policy, authz.ActionInvoicePatch), invoicesH.Patch)
			inv.DELETE("/:id/", middleware.RequirePolicy(policy, authz.ActionInvoiceDestroy), invoicesH.Delete)
			inv.GET("/:id/receipt", invoicesH.Receipt)
		}

		items := v1.Group("/invoice-items")
		{
			items.GET("/", itemsH.List)
			items.GET("/:id/", itemsH.Get)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
