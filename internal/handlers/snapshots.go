package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/services"
)

// SnapshotHandler handles snapshot listing and operator-driven restore.
type SnapshotHandler struct {
	targetService   *services.TargetService
	snapshotService *services.SnapshotService
	auditService    *services.AuditService
}

// NewSnapshotHandler creates a new SnapshotHandler instance.
func NewSnapshotHandler(targetService *services.TargetService, snapshotService *services.SnapshotService, auditService *services.AuditService) *SnapshotHandler {
	return &SnapshotHandler{
		targetService:   targetService,
		snapshotService: snapshotService,
		auditService:    auditService,
	}
}

// List returns a target's snapshots, newest first.
// GET /api/targets/:id/snapshots
func (h *SnapshotHandler) List(c *gin.Context) {
	target, err := h.targetService.GetTargetByID(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snapshots, err := h.snapshotService.ListSnapshots(target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// RestoreRequest names the snapshot to restore.
type RestoreRequest struct {
	Snapshot string `json:"snapshot" binding:"required"`
}

// Restore copies a snapshot back into the target's config directory.
// Restoring does not restart services; the operator decides when.
// POST /api/targets/:id/restore
func (h *SnapshotHandler) Restore(c *gin.Context) {
	target, err := h.targetService.GetTargetByID(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.snapshotService.Restore(target, req.Snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		h.auditService.LogRestore(user, target.Name, req.Snapshot, c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "snapshot restored",
		"snapshot": req.Snapshot,
	})
}
