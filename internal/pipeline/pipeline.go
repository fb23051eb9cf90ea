package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Step identifies a pipeline stage for failure reporting.
type Step int

// Pipeline stages in execution order. StepNone means no stage failed.
const (
	StepNone Step = iota
	StepBackup
	StepApply
	StepRestart
	StepVerify
)

// String returns the stage name.
func (s Step) String() string {
	switch s {
	case StepBackup:
		return "backup"
	case StepApply:
		return "apply"
	case StepRestart:
		return "restart"
	case StepVerify:
		return "verify"
	default:
		return "none"
	}
}

// Result is the outcome of a deployment run. Snapshot names the backup
// taken before apply, empty on a first deployment; it is the operator's
// recovery path for this run.
type Result struct {
	Succeeded  bool   `json:"succeeded"`
	FailedStep Step   `json:"failed_step"`
	Message    string `json:"message"`
	Snapshot   string `json:"snapshot,omitempty"`
}

// ServiceController abstracts the host's service manager. Any
// process-supervision system implementing these three capabilities is
// interchangeable.
type ServiceController interface {
	IsEnabled(name string) bool
	Restart(name string) error
	IsActive(name string) bool
}

// HealthProbe performs a single liveness check against the target. A
// probe failure is logged as a warning and never fails the pipeline.
type HealthProbe interface {
	Check(ctx context.Context) error
}

// DefaultSettleInterval is the wait after a restart command before the
// service's active status is polled.
const DefaultSettleInterval = 2 * time.Second

// Pipeline runs deployments against a target. Controller is required;
// Probe is optional and when nil verification degrades to the
// file-presence check only.
type Pipeline struct {
	Controller ServiceController
	Probe      HealthProbe

	// SettleInterval overrides DefaultSettleInterval when non-zero.
	SettleInterval time.Duration

	// Tee mirrors every deploy log line when non-nil.
	Tee func(line string)
}

func (p *Pipeline) settle() time.Duration {
	if p.SettleInterval > 0 {
		return p.SettleInterval
	}
	return DefaultSettleInterval
}

// Deploy transitions the target's configuration and dependent services
// to the state described by artifact. Stages run in the fixed order
// backup, apply, restart, verify; the first fatal error aborts the run.
// No stage is retried and already-applied changes are never rolled back
// automatically - the backup snapshot is the operator's recovery path.
func (p *Pipeline) Deploy(ctx context.Context, target Target, artifact Artifact, services []string) Result {
	logger, err := OpenLogger(target.LogPath, p.Tee)
	if err != nil {
		return Result{FailedStep: StepBackup, Message: err.Error()}
	}
	defer logger.Close()

	logger.Printf("starting deployment for %s", target.Name)

	snapshotPath, err := p.backupExisting(target, logger)
	if err != nil {
		logger.Printf("backup failed: %v", err)
		return Result{FailedStep: StepBackup, Message: err.Error()}
	}
	snapshot := ""
	if snapshotPath != "" {
		snapshot = filepath.Base(snapshotPath)
	}

	if err := p.deployConfigFiles(target, artifact, logger); err != nil {
		logger.Printf("apply failed: %v", err)
		return Result{FailedStep: StepApply, Message: err.Error(), Snapshot: snapshot}
	}

	if err := p.restartServices(services, logger); err != nil {
		logger.Printf("restart failed: %v", err)
		return Result{FailedStep: StepRestart, Message: err.Error(), Snapshot: snapshot}
	}

	if err := p.verifyDeployment(ctx, target, artifact, logger); err != nil {
		logger.Printf("verification failed: %v", err)
		return Result{FailedStep: StepVerify, Message: err.Error(), Snapshot: snapshot}
	}

	logger.Printf("deployment for %s completed successfully", target.Name)
	return Result{Succeeded: true, FailedStep: StepNone, Message: "deployment completed", Snapshot: snapshot}
}

// backupExisting copies the current config directory into a fresh
// timestamped snapshot under the backup directory. A missing config
// directory is the first-deployment case and is not an error; nothing
// is written in that case. Returns the snapshot path, empty when no
// backup was taken.
func (p *Pipeline) backupExisting(target Target, logger *Logger) (string, error) {
	if _, err := os.Stat(target.ConfigDir); os.IsNotExist(err) {
		logger.Printf("no existing config at %s, skipping backup", target.ConfigDir)
		return "", nil
	}

	snapshot := filepath.Join(target.BackupDir, snapshotName(time.Now()))
	// Deploys within the same second would collide on the timestamp;
	// suffix until the name is fresh so every run produces a snapshot.
	for n := 2; ; n++ {
		if _, err := os.Stat(snapshot); os.IsNotExist(err) {
			break
		}
		snapshot = filepath.Join(target.BackupDir, snapshotName(time.Now())+"-"+strconv.Itoa(n))
	}

	logger.Printf("backing up %s to %s", target.ConfigDir, snapshot)

	if err := copyDir(target.ConfigDir, snapshot); err != nil {
		return "", fmt.Errorf("backup of %s failed: %w", target.ConfigDir, err)
	}
	return snapshot, nil
}

// deployConfigFiles writes every artifact file into the config
// directory with mode 0644, overwriting existing files. Ownership is
// set to the target's service user on a best-effort basis: the agent
// may run unprivileged and correct content, not ownership, is the
// contract.
func (p *Pipeline) deployConfigFiles(target Target, artifact Artifact, logger *Logger) error {
	if err := os.MkdirAll(target.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	for _, name := range sortedFileNames(artifact) {
		dest := filepath.Join(target.ConfigDir, name)
		// Artifact names may be nested relative paths (conf.d/extra.conf).
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(dest, artifact.Files[name], 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		logger.Printf("deployed %s", dest)

		if target.ServiceUser != "" {
			if err := chownToUser(dest, target.ServiceUser); err != nil {
				logger.Printf("warning: could not set ownership of %s to %s: %v", dest, target.ServiceUser, err)
			}
		}
	}
	return nil
}

// restartServices restarts each service in declared order. Services not
// enabled on the host are skipped silently; an enabled service that
// does not reach active status after the settle interval aborts the
// stage immediately, leaving the remaining services untouched.
func (p *Pipeline) restartServices(services []string, logger *Logger) error {
	for _, name := range services {
		if !p.Controller.IsEnabled(name) {
			logger.Printf("service %s not enabled, skipping restart", name)
			continue
		}

		logger.Printf("restarting %s", name)
		if err := p.Controller.Restart(name); err != nil {
			return fmt.Errorf("restart of %s failed: %w", name, err)
		}

		time.Sleep(p.settle())

		if !p.Controller.IsActive(name) {
			return fmt.Errorf("service %s did not become active after restart", name)
		}
		logger.Printf("service %s is active", name)
	}
	return nil
}

// verifyDeployment checks that every artifact file is present on disk.
// The check is existence-only, not content. When a health probe is
// configured its failure is downgraded to a warning; only missing
// config files fail verification.
func (p *Pipeline) verifyDeployment(ctx context.Context, target Target, artifact Artifact, logger *Logger) error {
	for _, name := range sortedFileNames(artifact) {
		dest := filepath.Join(target.ConfigDir, name)
		if _, err := os.Stat(dest); err != nil {
			return fmt.Errorf("expected config file missing: %s", dest)
		}
	}
	logger.Printf("all %d config files present", len(artifact.Files))

	if p.Probe != nil {
		if err := p.Probe.Check(ctx); err != nil {
			logger.Printf("warning: health check failed: %v", err)
		} else {
			logger.Printf("health check passed")
		}
	}
	return nil
}

func sortedFileNames(artifact Artifact) []string {
	names := make([]string, 0, len(artifact.Files))
	for name := range artifact.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func chownToUser(path, username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	return os.Chown(path, uid, gid)
}

// copyDir recursively copies the directory tree at src to dst. The copy
// is non-destructive: src is never modified.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(dest, info.Mode().Perm())
		}
		return copyFile(path, dest, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
