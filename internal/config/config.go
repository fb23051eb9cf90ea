// Package config loads the agent's YAML configuration.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Deploy   DeployConfig   `yaml:"deploy"`
	Security SecurityConfig `yaml:"security"`
	Admin    AdminConfig    `yaml:"admin"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PathPrefix string `yaml:"path_prefix"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	SessionDuration string `yaml:"session_duration"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
}

// DeployConfig holds path roots and timing for the deploy pipeline.
type DeployConfig struct {
	ConfigRoot           string `yaml:"config_root"`
	BackupRoot           string `yaml:"backup_root"`
	LogDir               string `yaml:"log_dir"`
	SettleSeconds        int    `yaml:"settle_seconds"`
	HealthTimeoutSeconds int    `yaml:"health_timeout_seconds"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *AuthConfig) GetSessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionDuration)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetSettleInterval returns the post-restart settle wait.
func (c *DeployConfig) GetSettleInterval() time.Duration {
	if c.SettleSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.SettleSeconds) * time.Second
}

// GetHealthTimeout returns the per-probe timeout.
func (c *DeployConfig) GetHealthTimeout() time.Duration {
	if c.HealthTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.HealthTimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Missing config file falls back to defaults.
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/confdeploy.db"
	}
	if cfg.Auth.SessionDuration == "" {
		cfg.Auth.SessionDuration = "24h"
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.Deploy.ConfigRoot == "" {
		cfg.Deploy.ConfigRoot = "/etc"
	}
	if cfg.Deploy.BackupRoot == "" {
		cfg.Deploy.BackupRoot = "/var/backups"
	}
	if cfg.Deploy.LogDir == "" {
		cfg.Deploy.LogDir = "/var/log"
	}
	if cfg.Deploy.SettleSeconds == 0 {
		cfg.Deploy.SettleSeconds = 2
	}
	if cfg.Deploy.HealthTimeoutSeconds == 0 {
		cfg.Deploy.HealthTimeoutSeconds = 5
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = "changeme"
	}
}
