package handler

import (
	"business-wallet-engine/internal/adapter/http/middleware"
	"business-wallet-engine/internal/core/domain"
	"business-wallet-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)
	auditHandler := NewAuditHandler(deps.AuditSvc)

	// Service principals may read snapshots and run spend checks; the service re-checks the role on every mutation.
	admin := middleware.RequireRole(domain.RoleAdmin)
	reader := middleware.RequireRole(domain.RoleAdmin, domain.RoleService)

	wallet := r.Group("/api/v1/admin/businesses/:business_id/wallet",
		middleware.JWTAuth(deps.TokenSvc, deps.Logger),
		middleware.RequireJSON(),
	)
	{
		wallet.GET("", reader, rl(middleware.GroupWalletRead), walletHandler.GetSnapshot)
		wallet.GET("/audit", admin, rl(middleware.GroupWalletRead), auditHandler.List)

		wallet.POST("/adjust", admin, rl(middleware.GroupWalletWrite), walletHandler.AdjustBalance)
		wallet.POST("/freeze", admin, rl(middleware.GroupWalletWrite), walletHandler.Freeze)
		wallet.DELETE("/freeze", admin, rl(middleware.GroupWalletWrite), walletHandler.Unfreeze)
		wallet.PUT("/limits", admin, rl(middleware.GroupWalletWrite), walletHandler.SetLimits)
		wallet.DELETE("/limits", admin, rl(middleware.GroupWalletWrite), walletHandler.RemoveLimits)

		wallet.POST("/limits/check", reader, rl(middleware.GroupSpendCheck), walletHandler.CheckSpend)
	}

	return r
}
