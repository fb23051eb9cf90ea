// Package models defines data models for targets, deployments, and users.
package models

import (
	"strings"
	"time"
)

// Runtime selects the service controller used for a target's dependent
// services.
const (
	RuntimeSystemd = "systemd"
	RuntimeDocker  = "docker"
)

// Target represents a managed deployment target: the application whose
// configuration directory this agent deploys into.
type Target struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Runtime     string    `json:"runtime"`
	Services    string    `json:"services"`
	ServiceUser string    `json:"service_user"`
	HealthURL   string    `json:"health_url"`
	Token       string    `json:"token,omitempty"`
}

// ServiceList returns the dependent services in declared restart order.
func (t *Target) ServiceList() []string {
	if strings.TrimSpace(t.Services) == "" {
		return nil
	}
	parts := strings.Split(t.Services, ",")
	services := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			services = append(services, s)
		}
	}
	return services
}

// CreateTargetRequest contains the data for registering a new target.
type CreateTargetRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Runtime     string `json:"runtime"`
	Services    string `json:"services"`
	ServiceUser string `json:"service_user"`
	HealthURL   string `json:"health_url"`
}

// UpdateTargetRequest contains the data for updating an existing target.
type UpdateTargetRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Runtime     string `json:"runtime"`
	Services    string `json:"services"`
	ServiceUser string `json:"service_user"`
	HealthURL   string `json:"health_url"`
}
