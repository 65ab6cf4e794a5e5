// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/infrastructure/http/v1/handlers"
	"foodcoop/internal/infrastructure/http/v1/middleware"
	"foodcoop/internal/infrastructure/metrics"
	"foodcoop/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Orders handlers.OrderService
	Logger *logger.Logger

	// HealthChecks are probed by /health/ready.
	HealthChecks map[string]handlers.Pinger

	// Metrics instruments requests; MetricsHandler serves /metrics. Both optional.
	Metrics        *metrics.HTTPMetrics
	MetricsHandler http.Handler

	// Idempotency replays mutating requests carrying an Idempotency-Key. Optional.
	Idempotency middleware.IdempotencyStore

	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Order matters: the error handler renders what recovery and handlers register.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	api.Use(middleware.UserContext())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerOrderRoutes(api, handlers.NewOrderHandler(handlers.NewBaseHandler(), cfg.Orders))

	return router
}

func registerOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
		orders.PUT("/:id/articles", h.UpdateSelection)
		orders.PUT("/:id/requests", h.PlaceRequest)
		orders.POST("/:id/close", h.Close)
		orders.POST("/:id/finish", h.Finish)
		orders.POST("/:id/finish-direct", h.FinishDirect)
		orders.PUT("/:id/invoice", h.AttachInvoice)
		orders.GET("/:id/sums/:kind", h.Sum)
		orders.GET("/:id/profit", h.Profit)
		orders.GET("/:id/comments", h.Comments)
	}
}
