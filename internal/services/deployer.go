package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/health"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
)

var (
	// ErrDeploymentNotFound indicates the requested deployment was not found.
	ErrDeploymentNotFound = errors.New("deployment not found")
	// ErrUnknownRuntime indicates a target references a runtime with no
	// registered service controller.
	ErrUnknownRuntime = errors.New("unknown service runtime")
)

// DeployService runs the deploy pipeline against targets and records
// each run as a deployment row. Runs against the same target are
// serialized; different targets may deploy concurrently.
type DeployService struct {
	db          *database.DB
	cfg         *config.Config
	controllers map[string]pipeline.ServiceController

	streams   map[string][]chan string
	streamsMu sync.RWMutex

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// NewDeployService creates a new DeployService. controllers maps a
// target runtime name (systemd, docker) to its service controller.
func NewDeployService(db *database.DB, cfg *config.Config, controllers map[string]pipeline.ServiceController) *DeployService {
	return &DeployService{
		db:          db,
		cfg:         cfg,
		controllers: controllers,
		streams:     make(map[string][]chan string),
		locks:       make(map[string]*sync.Mutex),
	}
}

// PipelineTarget derives the pipeline target for a registered target
// using the configured path roots.
func (s *DeployService) PipelineTarget(t *models.Target) pipeline.Target {
	return pipeline.Target{
		Name:        t.Name,
		ServiceUser: t.ServiceUser,
		ConfigDir:   filepath.Join(s.cfg.Deploy.ConfigRoot, t.Name),
		BackupDir:   filepath.Join(s.cfg.Deploy.BackupRoot, t.Name),
		LogPath:     filepath.Join(s.cfg.Deploy.LogDir, t.Name+"-deploy.log"),
	}
}

// CreateDeployment records a new pending deployment for a target.
func (s *DeployService) CreateDeployment(targetID string, userID int64) (*models.Deployment, error) {
	id := uuid.New().String()

	_, err := s.db.Exec(
		"INSERT INTO deployments (id, target_id, user_id, status) VALUES (?, ?, ?, ?)",
		id, targetID, userID, models.StatusPending,
	)
	if err != nil {
		return nil, err
	}

	return s.GetDeploymentByID(id)
}

// GetDeploymentByID retrieves a deployment by its ID.
func (s *DeployService) GetDeploymentByID(id string) (*models.Deployment, error) {
	var d models.Deployment
	var failedStep, message, logText, snapshot sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := s.db.QueryRow(
		"SELECT id, target_id, user_id, status, failed_step, message, log, snapshot, started_at, finished_at, created_at FROM deployments WHERE id = ?",
		id,
	).Scan(&d.ID, &d.TargetID, &d.UserID, &d.Status, &failedStep, &message, &logText, &snapshot, &startedAt, &finishedAt, &d.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrDeploymentNotFound
	}
	if err != nil {
		return nil, err
	}

	if failedStep.Valid {
		d.FailedStep = failedStep.String
	}
	if message.Valid {
		d.Message = message.String
	}
	if logText.Valid {
		d.Log = logText.String
	}
	if snapshot.Valid {
		d.Snapshot = snapshot.String
	}
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		d.FinishedAt = &finishedAt.Time
	}

	return &d, nil
}

// GetDeployments retrieves recent deployments joined with target names.
func (s *DeployService) GetDeployments(limit, offset int) ([]models.DeploymentWithTarget, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT d.id, d.target_id, d.user_id, d.status, d.failed_step, d.message, d.snapshot,
		       d.started_at, d.finished_at, d.created_at, t.name
		FROM deployments d
		JOIN targets t ON d.target_id = t.id
		ORDER BY d.created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deployments := make([]models.DeploymentWithTarget, 0)
	for rows.Next() {
		var d models.DeploymentWithTarget
		var failedStep, message, snapshot sql.NullString
		var startedAt, finishedAt sql.NullTime

		if err := rows.Scan(
			&d.ID, &d.TargetID, &d.UserID, &d.Status, &failedStep, &message, &snapshot,
			&startedAt, &finishedAt, &d.CreatedAt, &d.TargetName,
		); err != nil {
			return nil, err
		}

		if failedStep.Valid {
			d.FailedStep = failedStep.String
		}
		if message.Valid {
			d.Message = message.String
		}
		if snapshot.Valid {
			d.Snapshot = snapshot.String
		}
		if startedAt.Valid {
			d.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			d.FinishedAt = &finishedAt.Time
		}

		deployments = append(deployments, d)
	}
	return deployments, nil
}

// targetLock returns the mutex serializing deploys for a target name.
func (s *DeployService) targetLock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[name] = mu
	}
	return mu
}

// Execute runs the deploy pipeline for a recorded deployment. It blocks
// until the pipeline finishes; callers trigger it from a goroutine for
// asynchronous deploys.
func (s *DeployService) Execute(deploymentID string, target *models.Target, artifact pipeline.Artifact) error {
	log.Printf("[Deploy] Starting deployment %s for target %s", deploymentID, target.Name)

	controller, ok := s.controllers[target.Runtime]
	if !ok {
		s.finishDeployment(deploymentID, models.StatusFailed, "", "unknown runtime: "+target.Runtime, "", "")
		s.broadcastComplete(deploymentID, models.StatusFailed)
		return ErrUnknownRuntime
	}

	var probe pipeline.HealthProbe
	if target.HealthURL != "" {
		probe = health.NewHTTPProbe(target.HealthURL, s.cfg.Deploy.GetHealthTimeout())
	}

	var logBuf strings.Builder
	var logMu sync.Mutex

	p := &pipeline.Pipeline{
		Controller:     controller,
		Probe:          probe,
		SettleInterval: s.cfg.Deploy.GetSettleInterval(),
		Tee: func(line string) {
			logMu.Lock()
			logBuf.WriteString(line + "\n")
			logMu.Unlock()
			s.broadcastLine(deploymentID, line)
		},
	}

	mu := s.targetLock(target.Name)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	s.db.Exec(
		"UPDATE deployments SET status = ?, started_at = ? WHERE id = ?",
		models.StatusRunning, now, deploymentID,
	)

	result := p.Deploy(context.Background(), s.PipelineTarget(target), artifact, target.ServiceList())

	logMu.Lock()
	finalLog := logBuf.String()
	logMu.Unlock()

	status := models.StatusSuccess
	failedStep := ""
	if !result.Succeeded {
		status = models.StatusFailed
		failedStep = result.FailedStep.String()
	}

	s.finishDeployment(deploymentID, status, failedStep, result.Message, finalLog, result.Snapshot)
	s.broadcastComplete(deploymentID, status)

	log.Printf("[Deploy] Finished deployment %s with status=%s failed_step=%s", deploymentID, status, failedStep)

	return nil
}

func (s *DeployService) finishDeployment(id string, status models.DeploymentStatus, failedStep, message, logText, snapshot string) {
	now := time.Now()
	s.db.Exec(
		"UPDATE deployments SET status = ?, failed_step = ?, message = ?, log = ?, snapshot = ?, finished_at = ? WHERE id = ?",
		status, failedStep, message, logText, snapshot, now, id,
	)
}

// Subscribe registers a channel receiving live deploy log lines.
func (s *DeployService) Subscribe(deploymentID string) chan string {
	ch := make(chan string, 100)

	s.streamsMu.Lock()
	s.streams[deploymentID] = append(s.streams[deploymentID], ch)
	s.streamsMu.Unlock()

	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (s *DeployService) Unsubscribe(deploymentID string, ch chan string) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()

	channels := s.streams[deploymentID]
	for i, c := range channels {
		if c == ch {
			s.streams[deploymentID] = append(channels[:i], channels[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.streams[deploymentID]) == 0 {
		delete(s.streams, deploymentID)
	}
}

func (s *DeployService) broadcastLine(deploymentID string, line string) {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	for _, ch := range s.streams[deploymentID] {
		select {
		case ch <- "output:" + line:
		default:
		}
	}
}

func (s *DeployService) broadcastComplete(deploymentID string, status models.DeploymentStatus) {
	s.streamsMu.RLock()
	defer s.streamsMu.RUnlock()

	for _, ch := range s.streams[deploymentID] {
		select {
		case ch <- "complete:" + string(status):
		default:
		}
	}
}
