// Package pipeline implements the config deployment pipeline:
// backup the current configuration, apply a new artifact, restart
// dependent services, and verify the result.
package pipeline

import (
	"fmt"
	"path/filepath"
	"time"
)

// Target identifies the application whose configuration is being deployed.
// ConfigDir, BackupDir and LogPath are derived from Name by NewTarget but
// can be overridden for non-standard layouts.
type Target struct {
	Name        string `json:"name"`
	ServiceUser string `json:"service_user"`
	ConfigDir   string `json:"config_dir"`
	BackupDir   string `json:"backup_dir"`
	LogPath     string `json:"log_path"`
}

// NewTarget returns a Target with the standard path layout for name:
// /etc/<name>, /var/backups/<name> and /var/log/<name>-deploy.log.
func NewTarget(name string) Target {
	return Target{
		Name:      name,
		ConfigDir: filepath.Join("/etc", name),
		BackupDir: filepath.Join("/var/backups", name),
		LogPath:   filepath.Join("/var/log", name+"-deploy.log"),
	}
}

// Artifact is a named bundle of configuration file contents, keyed by
// filename relative to the target's config directory. An artifact is
// treated as immutable once constructed.
type Artifact struct {
	Files map[string][]byte
}

// snapshotName returns the snapshot directory name for a backup taken at t.
func snapshotName(t time.Time) string {
	return fmt.Sprintf("config-%s", t.Format("20060102-150405"))
}
