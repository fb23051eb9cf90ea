// Package services provides business logic for target and deployment
// management.
package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/models"
)

var (
	// ErrTargetNotFound indicates the requested target was not found.
	ErrTargetNotFound = errors.New("target not found")
	// ErrTargetExists indicates a target with the same name already exists.
	ErrTargetExists = errors.New("target already exists")
	// ErrInvalidToken indicates the provided deploy token is invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// TargetService manages deployment targets.
type TargetService struct {
	db *database.DB
}

// NewTargetService creates a new TargetService instance.
func NewTargetService(db *database.DB) *TargetService {
	return &TargetService{db: db}
}

// CreateTarget registers a new target with a generated deploy token.
func (s *TargetService) CreateTarget(req *models.CreateTargetRequest) (*models.Target, error) {
	id := uuid.New().String()
	token := uuid.New().String()

	runtime := req.Runtime
	if runtime == "" {
		runtime = models.RuntimeSystemd
	}

	_, err := s.db.Exec(
		"INSERT INTO targets (id, name, description, runtime, services, service_user, health_url, token) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, req.Name, req.Description, runtime, req.Services, req.ServiceUser, req.HealthURL, token,
	)
	if err != nil {
		return nil, ErrTargetExists
	}

	return s.GetTargetByID(id)
}

// GetTargetByID retrieves a target by its ID.
func (s *TargetService) GetTargetByID(id string) (*models.Target, error) {
	return s.getTarget("id = ?", id, ErrTargetNotFound)
}

// GetTargetByName retrieves a target by its unique name.
func (s *TargetService) GetTargetByName(name string) (*models.Target, error) {
	return s.getTarget("name = ?", name, ErrTargetNotFound)
}

// GetTargetByToken retrieves a target by its deploy token.
func (s *TargetService) GetTargetByToken(token string) (*models.Target, error) {
	return s.getTarget("token = ?", token, ErrInvalidToken)
}

func (s *TargetService) getTarget(where string, arg interface{}, notFound error) (*models.Target, error) {
	var t models.Target
	err := s.db.QueryRow(
		"SELECT id, name, description, runtime, services, service_user, health_url, token, created_at, updated_at FROM targets WHERE "+where,
		arg,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Runtime, &t.Services, &t.ServiceUser, &t.HealthURL, &t.Token, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAllTargets retrieves all targets ordered by name.
func (s *TargetService) GetAllTargets() ([]models.Target, error) {
	rows, err := s.db.Query(
		"SELECT id, name, description, runtime, services, service_user, health_url, token, created_at, updated_at FROM targets ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Runtime, &t.Services, &t.ServiceUser, &t.HealthURL, &t.Token, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// UpdateTarget updates an existing target.
func (s *TargetService) UpdateTarget(id string, req *models.UpdateTargetRequest) (*models.Target, error) {
	t, err := s.GetTargetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Description != "" {
		t.Description = req.Description
	}
	if req.Runtime != "" {
		t.Runtime = req.Runtime
	}
	if req.Services != "" {
		t.Services = req.Services
	}
	if req.ServiceUser != "" {
		t.ServiceUser = req.ServiceUser
	}
	if req.HealthURL != "" {
		t.HealthURL = req.HealthURL
	}

	_, err = s.db.Exec(
		"UPDATE targets SET name = ?, description = ?, runtime = ?, services = ?, service_user = ?, health_url = ?, updated_at = ? WHERE id = ?",
		t.Name, t.Description, t.Runtime, t.Services, t.ServiceUser, t.HealthURL, time.Now(), id,
	)
	if err != nil {
		return nil, err
	}

	return s.GetTargetByID(id)
}

// RegenerateToken generates a new deploy token for a target.
func (s *TargetService) RegenerateToken(id string) (*models.Target, error) {
	_, err := s.GetTargetByID(id)
	if err != nil {
		return nil, err
	}

	newToken := uuid.New().String()
	_, err = s.db.Exec(
		"UPDATE targets SET token = ?, updated_at = ? WHERE id = ?",
		newToken, time.Now(), id,
	)
	if err != nil {
		return nil, err
	}

	return s.GetTargetByID(id)
}

// DeleteTarget deletes a target and its deployment history.
func (s *TargetService) DeleteTarget(id string) error {
	_, err := s.db.Exec("DELETE FROM deployments WHERE target_id = ?", id)
	if err != nil {
		return err
	}

	result, err := s.db.Exec("DELETE FROM targets WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTargetNotFound
	}
	return nil
}
