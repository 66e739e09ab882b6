package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studystake/coordinator/internal/metrics"
	"github.com/studystake/coordinator/internal/middleware"
	"github.com/studystake/coordinator/internal/services"
	"go.uber.org/zap"
)

// RouterConfig carries everything the HTTP surface needs
type RouterConfig struct {
	Accounts     *services.AccountService
	Lifecycle    *services.Lifecycle
	Orchestrator *services.Orchestrator
	Receipts     services.ReceiptReader
	ConfirmBatch int

	JWT         middleware.JWTConfig
	AdminAPIKey string
	// RateLimiter is optional
	RateLimiter *middleware.RateLimiter
	// Metrics is optional
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewRouter mounts the /api/v1 routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.AdminKeyHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	authHandler := NewAuthHandler(cfg.Accounts, cfg.JWT, logger)
	stakingHandler := NewStakingHandler(cfg.Accounts, cfg.Lifecycle, cfg.Orchestrator, logger)
	adminHandler := NewAdminHandler(cfg.Lifecycle, cfg.Orchestrator, cfg.Receipts, cfg.ConfirmBatch, logger)

	jwtAuth := middleware.JWTMiddleware(cfg.JWT.Secret)
	limit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Handler()
	}

	api := router.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Auth routes
	auth := api.Group("/auth")
	{
		auth.POST("/register", limit, authHandler.Register)
		auth.POST("/login", limit, authHandler.Login)
		auth.GET("/profile", jwtAuth, limit, authHandler.Profile)
	}

	// Staking routes (public reads)
	staking := api.Group("/staking")
	staking.Use(limit)
	{
		staking.GET("/pods", stakingHandler.ListPods)
		staking.GET("/pods/:id", stakingHandler.GetPod)
		staking.GET("/scholarship-pool", stakingHandler.ScholarshipPool)
	}

	// Staking routes (protected)
	protected := api.Group("/staking")
	protected.Use(jwtAuth, limit)
	{
		protected.POST("/wallet", stakingHandler.ConnectWallet)
		protected.GET("/wallet", stakingHandler.GetWallet)

		protected.POST("/commitments", stakingHandler.CreateCommitment)
		protected.GET("/commitments", stakingHandler.ListCommitments)
		protected.GET("/commitments/:id", stakingHandler.GetCommitment)
		protected.GET("/commitments/:id/progress", stakingHandler.CheckProgress)
		protected.POST("/commitments/:id/attest", stakingHandler.Attest)
		protected.POST("/commitments/:id/claim", stakingHandler.Claim)
		protected.POST("/commitments/:id/fail", stakingHandler.Fail)
		protected.POST("/commitments/:id/refund", stakingHandler.Refund)
		protected.GET("/commitments/:id/summary", stakingHandler.Summary)
		protected.GET("/commitments/:id/attestations", stakingHandler.Attestations)

		protected.POST("/pods", stakingHandler.CreatePod)
		protected.POST("/pods/:id/join", stakingHandler.JoinPod)
		protected.POST("/pods/:id/start", stakingHandler.StartPod)

		protected.GET("/transactions", stakingHandler.ListTransactions)
		protected.GET("/dashboard", stakingHandler.Dashboard)
	}

	// Operator routes
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.AdminAPIKey))
	{
		admin.POST("/sweep", adminHandler.Sweep)
		admin.POST("/expire", adminHandler.Expire)
		admin.POST("/confirm", adminHandler.Confirm)
		admin.POST("/transactions/status", adminHandler.UpdateTransactionStatus)
	}

	return router
}
