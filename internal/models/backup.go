package models

// TargetBackup is one exported target definition. Tokens are never
// exported; imported targets get fresh ones.
type TargetBackup struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Runtime     string `json:"runtime"`
	Services    string `json:"services"`
	ServiceUser string `json:"service_user"`
	HealthURL   string `json:"health_url"`
}

// BackupData is the export/import bundle of target definitions.
type BackupData struct {
	Version    string         `json:"version"`
	ExportedAt string         `json:"exported_at"`
	Targets    []TargetBackup `json:"targets"`
}
