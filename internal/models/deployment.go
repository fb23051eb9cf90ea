package models

import "time"

// DeploymentStatus represents the lifecycle state of a deployment run.
type DeploymentStatus string

// Deployment lifecycle states.
const (
	StatusPending DeploymentStatus = "pending"
	StatusRunning DeploymentStatus = "running"
	StatusSuccess DeploymentStatus = "success"
	StatusFailed  DeploymentStatus = "failed"
)

// Deployment represents one run of the deploy pipeline against a target.
type Deployment struct {
	ID         string           `json:"id"`
	TargetID   string           `json:"target_id"`
	UserID     int64            `json:"user_id"`
	Status     DeploymentStatus `json:"status"`
	FailedStep string           `json:"failed_step,omitempty"`
	Message    string           `json:"message,omitempty"`
	Log        string           `json:"log,omitempty"`
	Snapshot   string           `json:"snapshot,omitempty"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DeploymentWithTarget joins a deployment with its target name for
// list views.
type DeploymentWithTarget struct {
	Deployment
	TargetName string `json:"target_name"`
}

// DeployRequest is the artifact payload for triggering a deployment:
// a map from relative filename to file content.
type DeployRequest struct {
	Files map[string]string `json:"files" binding:"required"`
}

// Snapshot describes one timestamped backup of a target's config
// directory.
type Snapshot struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	FileCount int       `json:"file_count"`
}
