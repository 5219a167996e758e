package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailgatekeeper/internal/handler"
	"mailgatekeeper/pkg/metrics"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	alertHandler *handler.AlertHandler,
	scanHandler *handler.ScanHandler,
	draftHandler *handler.DraftHandler,
	apiToken string,
) *Router {
	r := gin.Default()
	r.Use(requestMetrics())

	// Health and metrics stay open for local probes.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(BearerAuth(apiToken))
	{
		v1.GET("/alerts", alertHandler.ListAlerts)
		v1.POST("/scan", scanHandler.TriggerScan)
		v1.POST("/drafts", draftHandler.CreateDraft)
	}

	return &Router{Engine: r}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(started),
		)
	}
}
