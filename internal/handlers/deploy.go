package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
)

// DeployHandler handles token-authenticated deployment triggers. These
// endpoints are what CI systems call; operators use the session API.
type DeployHandler struct {
	targetService *services.TargetService
	deployService *services.DeployService
	auditService  *services.AuditService
	pathPrefix    string
}

// NewDeployHandler creates a new DeployHandler instance.
func NewDeployHandler(targetService *services.TargetService, deployService *services.DeployService, auditService *services.AuditService, pathPrefix string) *DeployHandler {
	return &DeployHandler{
		targetService: targetService,
		deployService: deployService,
		auditService:  auditService,
		pathPrefix:    pathPrefix,
	}
}

// authTarget resolves the target and verifies the X-Deploy-Token
// header against its token. Writes the error response itself and
// returns nil when authentication fails.
func (h *DeployHandler) authTarget(c *gin.Context) *models.Target {
	token := c.GetHeader("X-Deploy-Token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-Deploy-Token header"})
		return nil
	}

	target, err := h.targetService.GetTargetByID(c.Param("target_id"))
	if err != nil {
		if err == services.ErrTargetNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}

	// Constant-time comparison to prevent timing attacks.
	if subtle.ConstantTimeCompare([]byte(target.Token), []byte(token)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return nil
	}

	return target
}

// Deploy starts a deployment of the posted artifact against a target.
// POST /deploy/:target_id
// Header: X-Deploy-Token: <token>
func (h *DeployHandler) Deploy(c *gin.Context) {
	target := h.authTarget(c)
	if target == nil {
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

	// user_id 0 marks token-authenticated API deploys.
	deployment, err := h.deployService.CreateDeployment(target.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.auditService.LogDeploy("deploy-token", nil, deployment.ID, target.Name, c.ClientIP(), c.GetHeader("User-Agent"))

	go h.deployService.Execute(deployment.ID, target, artifact)

	c.JSON(http.StatusAccepted, gin.H{
		"message":       "deployment started",
		"deployment_id": deployment.ID,
		"target_id":     target.ID,
		"target_name":   target.Name,
		"stream_url":    h.pathPrefix + "/deploy/" + target.ID + "/stream/" + deployment.ID,
		"status_url":    h.pathPrefix + "/deploy/" + target.ID + "/status/" + deployment.ID,
	})
}

// Status returns the state of a deployment.
// GET /deploy/:target_id/status/:deployment_id
// Header: X-Deploy-Token: <token>
func (h *DeployHandler) Status(c *gin.Context) {
	target := h.authTarget(c)
	if target == nil {
		return
	}

	deployment, err := h.deployService.GetDeploymentByID(c.Param("deployment_id"))
	if err != nil {
		if err == services.ErrDeploymentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if deployment.TargetID != target.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "deployment does not belong to this target"})
		return
	}

	c.JSON(http.StatusOK, deployment)
}

// Stream streams a deployment's log lines over SSE.
// GET /deploy/:target_id/stream/:deployment_id
// Header: X-Deploy-Token: <token>
func (h *DeployHandler) Stream(c *gin.Context) {
	target := h.authTarget(c)
	if target == nil {
		return
	}

	deployment, err := h.deployService.GetDeploymentByID(c.Param("deployment_id"))
	if err != nil {
		if err == services.ErrDeploymentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if deployment.TargetID != target.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "deployment does not belong to this target"})
		return
	}

	streamHandler := NewStreamHandler(h.deployService)
	streamHandler.streamDeployment(c, deployment.ID)
}
