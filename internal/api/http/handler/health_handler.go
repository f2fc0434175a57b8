package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler provides the liveness endpoint.
type HealthHandler struct {
	snapshots Snapshotter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(snapshots Snapshotter) *HealthHandler {
	return &HealthHandler{
		snapshots: snapshots,
	}
}

// SetupRoutes registers handler routes to the router.
func (h *HealthHandler) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", h.healthCheck)
}

// healthCheck confirms the daemon is running. The link state is reported
// but never makes the check fail.
func (h *HealthHandler) healthCheck(c *gin.Context) {
	snap := h.snapshots.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"link":   snap.State.String(),
		"uptime": snap.Uptime().String(),
	})
}
