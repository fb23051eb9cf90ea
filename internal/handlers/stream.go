package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/services"
)

// StreamHandler streams deployment logs over SSE.
type StreamHandler struct {
	deployService *services.DeployService
}

// NewStreamHandler creates a new StreamHandler instance.
func NewStreamHandler(deployService *services.DeployService) *StreamHandler {
	return &StreamHandler{deployService: deployService}
}

// Stream streams one deployment's log. GET /api/deployments/:id/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	h.streamDeployment(c, c.Param("id"))
}

func (h *StreamHandler) streamDeployment(c *gin.Context, id string) {
	deployment, err := h.deployService.GetDeploymentByID(id)
	if err != nil {
		if err == services.ErrDeploymentNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Finished deployments replay the stored log and complete at once.
	if deployment.Status == models.StatusSuccess || deployment.Status == models.StatusFailed {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		for _, line := range strings.Split(deployment.Log, "\n") {
			if line != "" {
				_, _ = fmt.Fprintf(c.Writer, "event: output\ndata: %s\n\n", line)
			}
		}

		_, _ = fmt.Fprintf(c.Writer, "event: complete\ndata: {\"status\": \"%s\", \"failed_step\": \"%s\"}\n\n", deployment.Status, deployment.FailedStep)
		c.Writer.Flush()
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := h.deployService.Subscribe(id)
	defer h.deployService.Unsubscribe(id, ch)

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}

			if strings.HasPrefix(msg, "output:") {
				line := strings.TrimPrefix(msg, "output:")
				_, _ = fmt.Fprintf(w, "event: output\ndata: %s\n\n", line)
			} else if strings.HasPrefix(msg, "complete:") {
				status := strings.TrimPrefix(msg, "complete:")
				failedStep := ""
				if final, err := h.deployService.GetDeploymentByID(id); err == nil {
					status = string(final.Status)
					failedStep = final.FailedStep
				}
				_, _ = fmt.Fprintf(w, "event: complete\ndata: {\"status\": \"%s\", \"failed_step\": \"%s\"}\n\n", status, failedStep)
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
