package services_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
	"github.com/widyaops/confdeploy/internal/services"
)

type stubController struct {
	enabled map[string]bool
	active  map[string]bool
}

func (s *stubController) IsEnabled(name string) bool { return s.enabled[name] }
func (s *stubController) Restart(name string) error  { return nil }
func (s *stubController) IsActive(name string) bool  { return s.active[name] }

func testDeployConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg, err := config.Load(filepath.Join(root, "missing.yaml"))
	if err != nil {
		t.Fatalf("failed to load default config: %v", err)
	}
	cfg.Deploy.ConfigRoot = filepath.Join(root, "etc")
	cfg.Deploy.BackupRoot = filepath.Join(root, "backups")
	cfg.Deploy.LogDir = filepath.Join(root, "log")
	cfg.Deploy.SettleSeconds = 1
	return cfg
}

func setupDeployService(t *testing.T, ctrl pipeline.ServiceController) (*services.DeployService, *services.TargetService, *config.Config) {
	t.Helper()
	db := setupTestDB(t)
	cfg := testDeployConfig(t)

	deploySvc := services.NewDeployService(db, cfg, map[string]pipeline.ServiceController{
		models.RuntimeSystemd: ctrl,
	})
	return deploySvc, services.NewTargetService(db), cfg
}

func TestDeployService_Execute_Success(t *testing.T) {
	ctrl := &stubController{
		enabled: map[string]bool{"myapp": true},
		active:  map[string]bool{"myapp": true},
	}
	deploySvc, targetSvc, cfg := setupDeployService(t, ctrl)

	target, err := targetSvc.CreateTarget(&models.CreateTargetRequest{
		Name:     "myapp",
		Services: "myapp",
	})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployment, err := deploySvc.CreateDeployment(target.ID, 1)
	if err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}
	if deployment.Status != models.StatusPending {
		t.Errorf("expected pending status, got %s", deployment.Status)
	}

	artifact := pipeline.Artifact{Files: map[string][]byte{
		"app.conf": []byte("port=8080"),
	}}

	if err := deploySvc.Execute(deployment.ID, target, artifact); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	final, err := deploySvc.GetDeploymentByID(deployment.ID)
	if err != nil {
		t.Fatalf("failed to reload deployment: %v", err)
	}
	if final.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", final.Status, final.Message)
	}
	if final.StartedAt == nil || final.FinishedAt == nil {
		t.Error("expected started_at and finished_at to be set")
	}
	if !strings.Contains(final.Log, "deployed") {
		t.Error("expected deploy log to be captured on the deployment")
	}

	content, err := os.ReadFile(filepath.Join(cfg.Deploy.ConfigRoot, "myapp", "app.conf"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if string(content) != "port=8080" {
		t.Errorf("expected port=8080, got %q", content)
	}
}

func TestDeployService_Execute_FailedRestartRecorded(t *testing.T) {
	ctrl := &stubController{
		enabled: map[string]bool{"myapp": true},
		active:  map[string]bool{}, // never becomes active
	}
	deploySvc, targetSvc, _ := setupDeployService(t, ctrl)

	target, err := targetSvc.CreateTarget(&models.CreateTargetRequest{
		Name:     "myapp",
		Services: "myapp",
	})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployment, err := deploySvc.CreateDeployment(target.ID, 1)
	if err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	artifact := pipeline.Artifact{Files: map[string][]byte{"app.conf": []byte("x")}}
	deploySvc.Execute(deployment.ID, target, artifact)

	final, err := deploySvc.GetDeploymentByID(deployment.ID)
	if err != nil {
		t.Fatalf("failed to reload deployment: %v", err)
	}
	if final.Status != models.StatusFailed {
		t.Fatalf("expected failed status, got %s", final.Status)
	}
	if final.FailedStep != "restart" {
		t.Errorf("expected failed_step restart, got %q", final.FailedStep)
	}
}

func TestDeployService_Execute_UnknownRuntime(t *testing.T) {
	deploySvc, targetSvc, _ := setupDeployService(t, &stubController{})

	target, err := targetSvc.CreateTarget(&models.CreateTargetRequest{
		Name:    "myapp",
		Runtime: "nomad",
	})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployment, err := deploySvc.CreateDeployment(target.ID, 1)
	if err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	if err := deploySvc.Execute(deployment.ID, target, pipeline.Artifact{}); err != services.ErrUnknownRuntime {
		t.Errorf("expected ErrUnknownRuntime, got %v", err)
	}

	final, _ := deploySvc.GetDeploymentByID(deployment.ID)
	if final.Status != models.StatusFailed {
		t.Errorf("expected failed status, got %s", final.Status)
	}
}

func TestDeployService_StreamSubscription(t *testing.T) {
	ctrl := &stubController{enabled: map[string]bool{}, active: map[string]bool{}}
	deploySvc, targetSvc, _ := setupDeployService(t, ctrl)

	target, err := targetSvc.CreateTarget(&models.CreateTargetRequest{Name: "myapp"})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployment, err := deploySvc.CreateDeployment(target.ID, 1)
	if err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	ch := deploySvc.Subscribe(deployment.ID)
	defer deploySvc.Unsubscribe(deployment.ID, ch)

	artifact := pipeline.Artifact{Files: map[string][]byte{"app.conf": []byte("x")}}
	if err := deploySvc.Execute(deployment.ID, target, artifact); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	var sawOutput, sawComplete bool
	for done := false; !done; {
		select {
		case msg := <-ch:
			if strings.HasPrefix(msg, "output:") {
				sawOutput = true
			}
			if strings.HasPrefix(msg, "complete:") {
				sawComplete = true
				done = true
			}
		default:
			done = true
		}
	}

	if !sawOutput {
		t.Error("expected streamed output lines")
	}
	if !sawComplete {
		t.Error("expected completion message")
	}
}

func TestSnapshotService_ListAndRestore(t *testing.T) {
	ctrl := &stubController{enabled: map[string]bool{}, active: map[string]bool{}}
	deploySvc, targetSvc, cfg := setupDeployService(t, ctrl)
	snapSvc := services.NewSnapshotService(deploySvc)

	target, err := targetSvc.CreateTarget(&models.CreateTargetRequest{Name: "myapp"})
	if err != nil {
		t.Fatalf("failed to create target: %v", err)
	}

	deployOnce := func(content string) *models.Deployment {
		t.Helper()
		deployment, err := deploySvc.CreateDeployment(target.ID, 1)
		if err != nil {
			t.Fatalf("failed to create deployment: %v", err)
		}
		artifact := pipeline.Artifact{Files: map[string][]byte{"app.conf": []byte(content)}}
		if err := deploySvc.Execute(deployment.ID, target, artifact); err != nil {
			t.Fatalf("execute failed: %v", err)
		}
		final, _ := deploySvc.GetDeploymentByID(deployment.ID)
		if final.Status != models.StatusSuccess {
			t.Fatalf("deploy failed: %s", final.Message)
		}
		return final
	}

	first := deployOnce("v1")
	second := deployOnce("v2") // backs up v1

	snapshots, err := snapSvc.ListSnapshots(target)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].FileCount != 1 {
		t.Errorf("expected snapshot with 1 file, got %d", snapshots[0].FileCount)
	}

	// The deployment row links each run to its recovery snapshot.
	if first.Snapshot != "" {
		t.Errorf("expected no snapshot on first deploy, got %q", first.Snapshot)
	}
	if second.Snapshot != snapshots[0].Name {
		t.Errorf("expected deployment snapshot %q, got %q", snapshots[0].Name, second.Snapshot)
	}

	if err := snapSvc.Restore(target, snapshots[0].Name); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(cfg.Deploy.ConfigRoot, "myapp", "app.conf"))
	if err != nil {
		t.Fatalf("config file missing after restore: %v", err)
	}
	if string(content) != "v1" {
		t.Errorf("expected restored content v1, got %q", content)
	}

	if err := snapSvc.Restore(target, "config-19990101-000000"); err == nil {
		t.Error("expected error restoring unknown snapshot")
	}
	if err := snapSvc.Restore(target, "../evil"); err == nil {
		t.Error("expected error for traversal snapshot name")
	}
}
