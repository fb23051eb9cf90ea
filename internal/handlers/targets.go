package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
	"github.com/widyaops/confdeploy/internal/validation"
)

// TargetHandler handles HTTP requests for target management.
type TargetHandler struct {
	targetService *services.TargetService
	auditService  *services.AuditService
}

// NewTargetHandler creates a new TargetHandler instance.
func NewTargetHandler(targetService *services.TargetService, auditService *services.AuditService) *TargetHandler {
	return &TargetHandler{
		targetService: targetService,
		auditService:  auditService,
	}
}

// List returns all registered targets.
func (h *TargetHandler) List(c *gin.Context) {
	targets, err := h.targetService.GetAllTargets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, targets)
}

// Get returns one target by ID.
func (h *TargetHandler) Get(c *gin.Context) {
	target, err := h.targetService.GetTargetByID(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, target)
}

// Create registers a new target.
func (h *TargetHandler) Create(c *gin.Context) {
	var req models.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateTargetName(req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target name: " + err.Error()})
		return
	}

	target, err := h.targetService.CreateTarget(&req)
	if err != nil {
		if err == services.ErrTargetExists {
			c.JSON(http.StatusConflict, gin.H{"error": "target already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		h.auditService.LogTargetChange(user, "target_created", target.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(http.StatusCreated, target)
}

// Update modifies an existing target.
func (h *TargetHandler) Update(c *gin.Context) {
	var req models.UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		if err := validation.ValidateTargetName(req.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target name: " + err.Error()})
			return
		}
	}

	target, err := h.targetService.UpdateTarget(c.Param("id"), &req)
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		h.auditService.LogTargetChange(user, "target_updated", target.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(http.StatusOK, target)
}

// Delete removes a target and its deployment history.
func (h *TargetHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	target, err := h.targetService.GetTargetByID(id)
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.targetService.DeleteTarget(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		h.auditService.LogTargetChange(user, "target_deleted", target.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(http.StatusOK, gin.H{"message": "target deleted"})
}

// RegenerateToken issues a fresh deploy token for a target, revoking
// the previous one.
func (h *TargetHandler) RegenerateToken(c *gin.Context) {
	target, err := h.targetService.RegenerateToken(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if user := middleware.CurrentUser(c); user != nil {
		h.auditService.LogTargetChange(user, "token_regenerated", target.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))
	}

	c.JSON(http.StatusOK, gin.H{"token": target.Token})
}
