package handler

import (
	"custodial-wallet/internal/adapter/http/middleware"
	redisStore "custodial-wallet/internal/adapter/storage/redis"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TransferSvc    ports.TransferService
	DepositSvc     ports.DepositService
	SettlementSvc  ports.SettlementService
	APIKeySvc      ports.APIKeyService
	HistorySvc     ports.HistoryService
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	WebhookSecret  string
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/google", rl("auth_signin"), authHandler.SignIn)
	}

	// Gateway callbacks authenticate with an HMAC signature, not a session.
	webhookHandler := NewWebhookHandler(deps.SettlementSvc, deps.SigSvc, deps.WebhookSecret, deps.Logger)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/paystack", rl("webhook"), webhookHandler.Paystack)
	}

	// --- Authenticated routes (Bearer JWT or X-API-Key) ---
	authenticate := middleware.Authenticate(deps.TokenSvc, deps.APIKeySvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.TransferSvc, deps.DepositSvc, deps.HistorySvc)

	wallet := v1.Group("/wallet", authenticate)
	{
		wallet.GET("/balance", rl("reads"), middleware.RequirePermission(domain.PermissionRead), walletHandler.GetBalance)
		wallet.GET("/transactions", rl("reads"), middleware.RequirePermission(domain.PermissionRead), walletHandler.ListTransactions)
		wallet.POST("/transfer", rl("transfer"), middleware.RequirePermission(domain.PermissionTransfer), walletHandler.Transfer)
		wallet.POST("/deposit", rl("deposit"), middleware.RequirePermission(domain.PermissionDeposit), walletHandler.Deposit)
		wallet.GET("/deposit/:reference", rl("reads"), middleware.RequirePermission(domain.PermissionRead), walletHandler.DepositStatus)
	}

	// --- Key management (session only; a key cannot mint or revoke keys) ---
	keyHandler := NewAPIKeyHandler(deps.APIKeySvc)
	keys := v1.Group("/keys", authenticate, middleware.RequireSession())
	{
		keys.POST("", rl("keys"), keyHandler.Create)
		keys.GET("", rl("keys"), keyHandler.List)
		keys.POST("/:id/rollover", rl("keys"), keyHandler.Rollover)
		keys.DELETE("/:id", rl("keys"), keyHandler.Revoke)
	}

	return r
}
