package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
)

// BackupHandler exports and imports target definitions as JSON. This
// covers the registry only, not config snapshots on disk.
type BackupHandler struct {
	targetService *services.TargetService
	auditService  *services.AuditService
}

// NewBackupHandler creates a new BackupHandler instance.
func NewBackupHandler(targetService *services.TargetService, auditService *services.AuditService) *BackupHandler {
	return &BackupHandler{
		targetService: targetService,
		auditService:  auditService,
	}
}

// Export exports all target definitions. Deploy tokens are excluded;
// imported targets get fresh ones.
func (h *BackupHandler) Export(c *gin.Context) {
	targets, err := h.targetService.GetAllTargets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get targets"})
		return
	}

	backupTargets := make([]models.TargetBackup, 0, len(targets))
	for _, t := range targets {
		backupTargets = append(backupTargets, models.TargetBackup{
			Name:        t.Name,
			Description: t.Description,
			Runtime:     t.Runtime,
			Services:    t.Services,
			ServiceUser: t.ServiceUser,
			HealthURL:   t.HealthURL,
		})
	}

	backup := models.BackupData{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Targets:    backupTargets,
	}

	if user := middleware.CurrentUser(c); user != nil {
		_ = h.auditService.Log(services.AuditLog{
			UserID:       &user.ID,
			Username:     user.Username,
			Action:       "export_backup",
			ResourceType: "backup",
			IPAddress:    c.ClientIP(),
			UserAgent:    c.GetHeader("User-Agent"),
			Details:      map[string]interface{}{"target_count": len(backupTargets)},
		})
	}

	c.Header("Content-Disposition", "attachment; filename=targets.json")
	c.JSON(http.StatusOK, backup)
}

// Import creates targets from an exported bundle. Existing names are
// skipped, never overwritten.
func (h *BackupHandler) Import(c *gin.Context) {
	var backup models.BackupData
	if err := c.ShouldBindJSON(&backup); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid backup data: " + err.Error()})
		return
	}

	if len(backup.Targets) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no targets found in backup"})
		return
	}

	imported := 0
	skipped := 0
	errors := []string{}

	for _, tb := range backup.Targets {
		if existing, _ := h.targetService.GetTargetByName(tb.Name); existing != nil {
			skipped++
			continue
		}

		_, err := h.targetService.CreateTarget(&models.CreateTargetRequest{
			Name:        tb.Name,
			Description: tb.Description,
			Runtime:     tb.Runtime,
			Services:    tb.Services,
			ServiceUser: tb.ServiceUser,
			HealthURL:   tb.HealthURL,
		})
		if err != nil {
			errors = append(errors, "failed to create target '"+tb.Name+"': "+err.Error())
			continue
		}
		imported++
	}

	if user := middleware.CurrentUser(c); user != nil {
		_ = h.auditService.Log(services.AuditLog{
			UserID:       &user.ID,
			Username:     user.Username,
			Action:       "import_backup",
			ResourceType: "backup",
			IPAddress:    c.ClientIP(),
			UserAgent:    c.GetHeader("User-Agent"),
			Details: map[string]interface{}{
				"imported": imported,
				"skipped":  skipped,
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
		"errors":   errors,
	})
}
