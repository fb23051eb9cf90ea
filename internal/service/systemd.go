// Package service provides systemd integration: a ServiceController
// backed by systemctl and installation of the agent's own unit.
package service

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const (
	agentServiceName = "confdeploy"
	agentUnitPath    = "/etc/systemd/system/confdeploy.service"
)

// SystemdController controls host services through systemctl. It
// satisfies the pipeline's ServiceController contract.
type SystemdController struct{}

// NewSystemdController returns a systemctl-backed controller.
func NewSystemdController() *SystemdController {
	return &SystemdController{}
}

// IsEnabled reports whether the unit is enabled on the host. Unknown or
// unregistered units report false, which the pipeline treats as a skip.
func (c *SystemdController) IsEnabled(name string) bool {
	if !IsSystemdAvailable() {
		return false
	}
	output, err := exec.Command("systemctl", "is-enabled", name).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "enabled"
}

// Restart issues a restart command for the unit.
func (c *SystemdController) Restart(name string) error {
	return runSystemctl("restart", name)
}

// IsActive reports whether the unit is in active state.
func (c *SystemdController) IsActive(name string) bool {
	output, err := exec.Command("systemctl", "is-active", name).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "active"
}

// AgentStatus represents the status of the agent's own systemd unit.
type AgentStatus struct {
	IsRunning   bool   `json:"is_running"`
	IsEnabled   bool   `json:"is_enabled"`
	IsInstalled bool   `json:"is_installed"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
}

// AgentConfig holds configuration for installing the agent unit.
type AgentConfig struct {
	ExecPath   string
	ConfigPath string
	User       string
	WorkingDir string
}

const unitTemplate = `[Unit]
Description=Confdeploy - Config Deployment Agent
After=network.target

[Service]
Type=simple
User={{.User}}
Group={{.User}}
WorkingDirectory={{.WorkingDir}}
ExecStart={{.ExecPath}} -config {{.ConfigPath}}
Restart=always
RestartSec=5
StandardOutput=journal
StandardError=journal

NoNewPrivileges=true
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`

// IsLinux returns true if running on Linux.
func IsLinux() bool {
	return runtime.GOOS == "linux"
}

// IsSystemdAvailable checks if systemctl command is available.
func IsSystemdAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

// IsRoot checks if running as root user.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// GenerateUnitFile generates the agent's systemd unit file content.
func GenerateUnitFile(cfg AgentConfig) (string, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to execute unit template: %w", err)
	}

	return buf.String(), nil
}

// Install installs and starts the agent's systemd unit.
func Install(cfg AgentConfig) error {
	if !IsLinux() {
		return fmt.Errorf("service installation only supported on Linux")
	}

	if !IsSystemdAvailable() {
		return fmt.Errorf("systemd not available on this system")
	}

	if !IsRoot() {
		return fmt.Errorf("root privileges required for service installation")
	}

	content, err := GenerateUnitFile(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(agentUnitPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	if err := runSystemctl("daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}

	if err := runSystemctl("enable", agentServiceName); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}

	if err := runSystemctl("start", agentServiceName); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	return nil
}

// Uninstall stops and removes the agent's systemd unit.
func Uninstall() error {
	if !IsLinux() {
		return fmt.Errorf("service uninstallation only supported on Linux")
	}

	if !IsSystemdAvailable() {
		return fmt.Errorf("systemd not available on this system")
	}

	if !IsRoot() {
		return fmt.Errorf("root privileges required for service uninstallation")
	}

	_ = runSystemctl("stop", agentServiceName)
	_ = runSystemctl("disable", agentServiceName)

	if err := os.Remove(agentUnitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}

	if err := runSystemctl("daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}

	return nil
}

// Status returns the agent unit's current status.
func Status() (*AgentStatus, error) {
	status := &AgentStatus{}

	if !IsLinux() || !IsSystemdAvailable() {
		return status, nil
	}

	if _, err := os.Stat(agentUnitPath); err == nil {
		status.IsInstalled = true
	}

	activeState, err := getSystemctlProperty("ActiveState")
	if err == nil {
		status.ActiveState = activeState
		status.IsRunning = activeState == "active"
	}

	subState, err := getSystemctlProperty("SubState")
	if err == nil {
		status.SubState = subState
	}

	output, err := exec.Command("systemctl", "is-enabled", agentServiceName).Output()
	if err == nil {
		status.IsEnabled = strings.TrimSpace(string(output)) == "enabled"
	}

	return status, nil
}

// DefaultAgentConfig returns default installation configuration.
func DefaultAgentConfig() AgentConfig {
	execPath, _ := os.Executable()
	execPath, _ = filepath.EvalSymlinks(execPath)

	return AgentConfig{
		ExecPath:   execPath,
		ConfigPath: "/etc/confdeploy/config.yaml",
		User:       "root",
		WorkingDir: "/etc/confdeploy",
	}
}

// runSystemctl executes a systemctl command.
func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s", err, string(output))
	}
	return nil
}

// getSystemctlProperty gets a systemd property value for the agent unit.
func getSystemctlProperty(property string) (string, error) {
	cmd := exec.Command("systemctl", "show", agentServiceName, "--property="+property, "--value")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}
