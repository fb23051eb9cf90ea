package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/middleware"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
)

// DeploymentHandler is the session-authenticated view of deployment
// history, plus the operator-triggered deploy path.
type DeploymentHandler struct {
	targetService *services.TargetService
	deployService *services.DeployService
	auditService  *services.AuditService
}

// NewDeploymentHandler creates a new DeploymentHandler instance.
func NewDeploymentHandler(targetService *services.TargetService, deployService *services.DeployService, auditService *services.AuditService) *DeploymentHandler {
	return &DeploymentHandler{
		targetService: targetService,
		deployService: deployService,
		auditService:  auditService,
	}
}

// List returns recent deployments across all targets.
// GET /api/deployments?limit=&offset=
func (h *DeploymentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	deployments, err := h.deployService.GetDeployments(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, deployments)
}

// Get returns one deployment including its captured log.
// GET /api/deployments/:id
func (h *DeploymentHandler) Get(c *gin.Context) {
	deployment, err := h.deployService.GetDeploymentByID(c.Param("id"))
	if err != nil {
		if err == services.ErrDeploymentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, deployment)
}

// Deploy triggers a deployment from an authenticated operator session.
// POST /api/targets/:id/deploy
func (h *DeploymentHandler) Deploy(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	target, err := h.targetService.GetTargetByID(c.Param("id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req models.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact: " + err.Error()})
		return
	}

	artifact, err := buildArtifact(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deployment, err := h.deployService.CreateDeployment(target.ID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.auditService.LogDeploy(user.Username, &user.ID, deployment.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))

	go h.deployService.Execute(deployment.ID, target, artifact)

	c.JSON(http.StatusAccepted, gin.H{
		"message":       "deployment started",
		"deployment_id": deployment.ID,
	})
}
