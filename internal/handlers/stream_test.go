package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/widyaops/confdeploy/internal/handlers"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
)

func TestStreamHandler_ReplaysFinishedDeployment(t *testing.T) {
	env := setupTestEnv(t)

	target, err := env.targetService.CreateTarget(&models.CreateTargetRequest{Name: "myapp"})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployment, err := env.deployService.CreateDeployment(target.ID, 1)
	if err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	artifact := pipeline.Artifact{Files: map[string][]byte{"app.conf": []byte("x")}}
	if err := env.deployService.Execute(deployment.ID, target, artifact); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	handler := handlers.NewStreamHandler(env.deployService)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/deployments/"+deployment.ID+"/stream", nil)
	c.Params = gin.Params{{Key: "id", Value: deployment.ID}}

	handler.Stream(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: output") {
		t.Error("expected replayed output events")
	}
	if !strings.Contains(body, "event: complete") {
		t.Error("expected completion event")
	}
	if !strings.Contains(body, `"status": "success"`) {
		t.Errorf("expected success status in completion event, body: %s", body)
	}
}

func TestStreamHandler_UnknownDeployment(t *testing.T) {
	env := setupTestEnv(t)

	handler := handlers.NewStreamHandler(env.deployService)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/deployments/nope/stream", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.Stream(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
