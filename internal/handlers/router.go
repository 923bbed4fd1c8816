package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"derroche/internal/middleware"
	"derroche/internal/queue"
	"derroche/internal/services"
)

// RouterConfig holds what the ops HTTP API serves.
type RouterConfig struct {
	DB            Pinger
	RecordService services.RecordServicer
	AuditService  services.AuditServicer
	Queue         queue.Inspector
	OpsAPIKey     string
	// Webhook is nil when updates are received by long polling.
	Webhook *WebhookHandler
}

// NewRouter builds the gin engine for the ops API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())

	healthHandler := NewHealthHandler(cfg.DB)
	router.GET("/api/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Webhook != nil {
		router.POST("/telegram/webhook", cfg.Webhook.Receive)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(cfg.OpsAPIKey))

	if cfg.Queue != nil {
		queueHandler := NewQueueHandler(cfg.Queue)
		v1.GET("/queue/stats", queueHandler.Stats)
		v1.GET("/queue/jobs/:id", queueHandler.GetJob)
	}

	recordHandler := NewRecordHandler(cfg.RecordService, cfg.AuditService)
	records := v1.Group("/records")
	records.GET("", recordHandler.ListRecords)
	records.GET("/:id", recordHandler.GetRecord)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Resource not found"}})
	})

	return router
}
