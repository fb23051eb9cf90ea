package services

import (
	"encoding/json"

	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/models"
)

// AuditService records operator actions: logins, target mutations,
// deploys, and restores.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditLog represents an audit log entry to be recorded.
type AuditLog struct {
	UserID       *int64
	Details      map[string]interface{}
	Username     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
}

// Log records an audit log entry to the database.
func (s *AuditService) Log(entry AuditLog) error {
	var detailsJSON string
	if entry.Details != nil {
		bytes, err := json.Marshal(entry.Details)
		if err == nil {
			detailsJSON = string(bytes)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO audit_logs (user_id, username, action, resource_type, resource_id, ip_address, user_agent, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.UserID, entry.Username, entry.Action, entry.ResourceType, entry.ResourceID, entry.IPAddress, entry.UserAgent, detailsJSON)

	return err
}

// LogLogin logs a user login attempt.
func (s *AuditService) LogLogin(user *models.User, ip, userAgent string, success bool) {
	action := "login_success"
	if !success {
		action = "login_failed"
	}

	s.Log(AuditLog{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       action,
		ResourceType: "auth",
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
}

// LogDeploy logs the start of a deployment.
func (s *AuditService) LogDeploy(username string, userID *int64, deploymentID, targetName string, ip, userAgent string) {
	s.Log(AuditLog{
		UserID:       userID,
		Username:     username,
		Action:       "deploy",
		ResourceType: "deployment",
		ResourceID:   deploymentID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details: map[string]interface{}{
			"target_name": targetName,
		},
	})
}

// LogRestore logs an operator-driven snapshot restore.
func (s *AuditService) LogRestore(user *models.User, targetName, snapshot string, ip, userAgent string) {
	s.Log(AuditLog{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       "restore",
		ResourceType: "snapshot",
		ResourceID:   snapshot,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details: map[string]interface{}{
			"target_name": targetName,
		},
	})
}

// LogTargetChange logs create/update/delete of a target.
func (s *AuditService) LogTargetChange(user *models.User, action, targetID, targetName string, ip, userAgent string) {
	s.Log(AuditLog{
		UserID:       &user.ID,
		Username:     user.Username,
		Action:       action,
		ResourceType: "target",
		ResourceID:   targetID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details: map[string]interface{}{
			"target_name": targetName,
		},
	})
}

// AuditLogEntry represents an audit log record from the database.
type AuditLogEntry struct {
	UserID       *int64 `json:"user_id"`
	Username     string `json:"username"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent"`
	Details      string `json:"details"`
	CreatedAt    string `json:"created_at"`
	ID           int64  `json:"id"`
}

// GetLogs retrieves audit logs with pagination.
func (s *AuditService) GetLogs(limit, offset int) ([]AuditLogEntry, error) {
	if limit == 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, username, action, resource_type, resource_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]AuditLogEntry, 0)
	for rows.Next() {
		var entry AuditLogEntry
		var resourceID, ipAddress, userAgent, details *string
		var userIDInt *int64

		if err := rows.Scan(
			&entry.ID,
			&userIDInt,
			&entry.Username,
			&entry.Action,
			&entry.ResourceType,
			&resourceID,
			&ipAddress,
			&userAgent,
			&details,
			&entry.CreatedAt,
		); err != nil {
			continue
		}

		entry.UserID = userIDInt
		if resourceID != nil {
			entry.ResourceID = *resourceID
		}
		if ipAddress != nil {
			entry.IPAddress = *ipAddress
		}
		if userAgent != nil {
			entry.UserAgent = *userAgent
		}
		if details != nil {
			entry.Details = *details
		}

		logs = append(logs, entry)
	}

	return logs, nil
}
