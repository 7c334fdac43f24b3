// Package config provides YAML-based configuration loading for Slipway.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Slipway configuration, loaded from slipway.yaml.
type Config struct {
	Owner    string         `yaml:"owner"`
	Listen   ListenConfig   `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Builder  BuilderConfig  `yaml:"builder"`
	Worker   WorkerConfig   `yaml:"worker"`
	Notify   NotifyConfig   `yaml:"notify"`
	GitHub   GitHubConfig   `yaml:"github"`
}

// ListenConfig holds HTTP server settings.
type ListenConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects and configures the backing store. Driver is
// "sqlite" (default, file-based) or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite only
	Host     string `yaml:"host"` // mysql only
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// BuilderConfig holds settings for the build/push executor.
type BuilderConfig struct {
	BuildImage      string `yaml:"build_image"`      // buildroot the docker build runs in
	ResultsRegistry string `yaml:"results_registry"` // registry built images are stored in
	DockerBin       string `yaml:"docker_bin"`
	LintBin         string `yaml:"lint_bin"` // dockerfile lint binary; empty disables linting
}

// WorkerConfig holds settings for the job runner.
type WorkerConfig struct {
	Slots        int `yaml:"slots"`
	PollInterval int `yaml:"poll_interval"` // seconds
}

// NotifyConfig configures completion notifications. Platform is "slack",
// "discord", or empty to disable.
type NotifyConfig struct {
	Platform       string `yaml:"platform"`
	Token          string `yaml:"token"`
	Channel        string `yaml:"channel"`
	DigestSchedule string `yaml:"digest_schedule"` // cron spec; empty disables the digest
}

// GitHubConfig holds an optional token for commit pinning of GitHub-hosted
// build sources.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "slipway.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Database == "" && c.Owner != "" {
			c.Database.Database = "slipway_" + c.Owner
		}
	}
	if c.Builder.BuildImage == "" {
		c.Builder.BuildImage = "buildroot-fedora"
	}
	if c.Builder.ResultsRegistry == "" {
		c.Builder.ResultsRegistry = "localhost:5000"
	}
	if c.Builder.DockerBin == "" {
		c.Builder.DockerBin = "docker"
	}
	if c.Worker.Slots == 0 {
		c.Worker.Slots = 2
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Owner == "" {
		errs = append(errs, "owner is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.Database == "" {
		errs = append(errs, "database.database is required for mysql")
	}
	switch c.Notify.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q is not supported (slack, discord)", c.Notify.Platform))
	}
	if c.Notify.Platform != "" {
		if c.Notify.Token == "" {
			errs = append(errs, "notify.token is required when notify.platform is set")
		}
		if c.Notify.Channel == "" {
			errs = append(errs, "notify.channel is required when notify.platform is set")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
