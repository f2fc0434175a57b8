package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// Snapshotter provides the current daemon snapshot.
type Snapshotter interface {
	Snapshot() status.Snapshot
}

// NewRouter builds the gin engine with every route registered. A nil
// gatherer leaves /metrics unregistered.
func NewRouter(ctx context.Context, snapshots Snapshotter, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(logger.WithName(ctx, "http")))

	NewHealthHandler(snapshots).SetupRoutes(r)
	NewStatusHandler(snapshots).SetupRoutes(r)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

// loggingMiddleware logs each request with its latency at debug level.
func loggingMiddleware(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		logger.DebugKV(ctx, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(startTime))
	}
}
