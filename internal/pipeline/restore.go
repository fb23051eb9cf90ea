package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotInfo describes one backup snapshot on disk.
type SnapshotInfo struct {
	Name      string
	Path      string
	CreatedAt time.Time
	FileCount int
}

// ListSnapshots returns the target's backup snapshots, newest first. A
// missing backup directory yields an empty list.
func ListSnapshots(target Target) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(target.BackupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshots []SnapshotInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "config-") {
			continue
		}

		path := filepath.Join(target.BackupDir, entry.Name())
		info := SnapshotInfo{
			Name:      entry.Name(),
			Path:      path,
			FileCount: countFiles(path),
		}
		if fi, err := entry.Info(); err == nil {
			info.CreatedAt = fi.ModTime()
		}
		snapshots = append(snapshots, info)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name > snapshots[j].Name
	})
	return snapshots, nil
}

// Restore copies a snapshot's contents back into the target's config
// directory. This is the operator-driven recovery path; it is never
// invoked automatically. Files present in the config directory but not
// in the snapshot are left in place.
func Restore(target Target, snapshot string) error {
	// Snapshot names are flat directory names; reject anything else.
	if snapshot != filepath.Base(snapshot) || !strings.HasPrefix(snapshot, "config-") {
		return fmt.Errorf("invalid snapshot name: %s", snapshot)
	}

	src := filepath.Join(target.BackupDir, snapshot)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("snapshot not found: %s", snapshot)
	}

	logger, err := OpenLogger(target.LogPath, nil)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Printf("restoring %s from snapshot %s", target.ConfigDir, snapshot)

	if err := copyDir(src, target.ConfigDir); err != nil {
		logger.Printf("restore failed: %v", err)
		return fmt.Errorf("restore of %s failed: %w", snapshot, err)
	}

	logger.Printf("restore from %s completed", snapshot)
	return nil
}

func countFiles(dir string) int {
	count := 0
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return nil
	})
	return count
}
