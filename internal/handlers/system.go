package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/metrics"
)

// SystemHandler reports host metrics for the agent's status view.
type SystemHandler struct {
	cfg *config.Config
}

// NewSystemHandler creates a new SystemHandler instance.
func NewSystemHandler(cfg *config.Config) *SystemHandler {
	return &SystemHandler{cfg: cfg}
}

// Metrics returns host resource usage plus usage of the config and
// backup roots. GET /api/system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	hostMetrics, err := metrics.GetHostMetrics(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"host": hostMetrics}

	if usage, err := metrics.GetPathUsage(h.cfg.Deploy.BackupRoot); err == nil {
		resp["backup_root"] = usage
	}
	if usage, err := metrics.GetPathUsage(h.cfg.Deploy.ConfigRoot); err == nil {
		resp["config_root"] = usage
	}

	c.JSON(http.StatusOK, resp)
}
