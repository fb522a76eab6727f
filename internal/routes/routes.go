package routes

import (
	"net/http"

	"kvstore-api/internal/auth"
	"kvstore-api/internal/handlers"
	"kvstore-api/internal/kv"
	"kvstore-api/internal/metrics"
	"kvstore-api/internal/middleware"
	"kvstore-api/internal/realtime"
	"kvstore-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the components the router serves.
type Deps struct {
	Pool    *worker.Pool
	Service *kv.Service
	Hub     *realtime.Hub
	Metrics *metrics.Collector
	// Issuer enables bearer auth on /create and /delete when non-nil.
	Issuer *auth.Issuer
	Logger *zap.Logger
}

func SetupRoutes(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Hub == nil {
		d.Hub = realtime.NewHub()
	}

	ginRouter := gin.New()
	ginRouter.Use(middleware.RequestID(), middleware.Logger(d.Logger), gin.Recovery())

	// CORS middleware (for browser clients)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"workers":       d.Pool.Stats(),
			"cache_entries": d.Service.CacheLen(),
			"watchers":      d.Hub.Len(),
		})
	})
	ginRouter.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	kvHandler := handlers.NewKVHandler(d.Pool, d.Service, d.Hub, d.Logger)

	ginRouter.GET("/read/:key", kvHandler.Read)
	ginRouter.GET("/watch", handlers.WatchHandler(d.Hub, d.Logger))

	// Write routes (authenticated when an issuer is configured)
	writes := ginRouter.Group("")
	if d.Issuer != nil {
		writes.Use(middleware.JWTAuthMiddleware(d.Issuer))
	}
	{
		writes.POST("/create", kvHandler.Create)
		writes.DELETE("/delete/:key", kvHandler.Delete)
	}

	return ginRouter
}
