package services

import (
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
)

// SnapshotService lists and restores backup snapshots. Snapshots are
// retained indefinitely; pruning is left to the operator.
type SnapshotService struct {
	deployService *DeployService
}

// NewSnapshotService creates a new SnapshotService instance.
func NewSnapshotService(deployService *DeployService) *SnapshotService {
	return &SnapshotService{deployService: deployService}
}

// ListSnapshots returns a target's snapshots, newest first.
func (s *SnapshotService) ListSnapshots(target *models.Target) ([]models.Snapshot, error) {
	infos, err := pipeline.ListSnapshots(s.deployService.PipelineTarget(target))
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.Snapshot, 0, len(infos))
	for _, info := range infos {
		snapshots = append(snapshots, models.Snapshot{
			Name:      info.Name,
			Path:      info.Path,
			CreatedAt: info.CreatedAt,
			FileCount: info.FileCount,
		})
	}
	return snapshots, nil
}

// Restore copies a named snapshot back into the target's config
// directory. Restores take the same per-target lock as deploys.
func (s *SnapshotService) Restore(target *models.Target, snapshot string) error {
	mu := s.deployService.targetLock(target.Name)
	mu.Lock()
	defer mu.Unlock()

	return pipeline.Restore(s.deployService.PipelineTarget(target), snapshot)
}
