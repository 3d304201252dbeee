package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"swiftpay/internal/handler"
	"swiftpay/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	WithdrawalHandler *handler.WithdrawalHandler
	RedisClient       *redis.Client
	NewRelicApp       *newrelic.Application
	AllowedOrigin     string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigin))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Client-facing withdrawal routes.
	router.POST("/pay", deps.WithdrawalHandler.Pay)
	router.POST("/retry/:reference", deps.WithdrawalHandler.Retry)
	router.GET("/receipt/:reference", deps.WithdrawalHandler.GetReceipt)
	router.GET("/receipt/:reference/pdf", deps.WithdrawalHandler.GetReceiptPDF)
	router.GET("/check-withdrawal/:phone", deps.WithdrawalHandler.CheckWithdrawal)

	// Provider webhook.
	router.POST("/callback", deps.WithdrawalHandler.Callback)

	return router
}
