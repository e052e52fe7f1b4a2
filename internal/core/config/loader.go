package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills unset fields so a minimal config file stays valid.
func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Mode.Name == "" {
		cfg.Mode.Name = "safe"
	}

	if cfg.Proxy.RotationStrategy == "" {
		cfg.Proxy.RotationStrategy = "weighted"
	}
	if cfg.Proxy.MaxFailures == 0 {
		cfg.Proxy.MaxFailures = 3
	}
	if cfg.Proxy.MinScore == 0 {
		cfg.Proxy.MinScore = 0.3
	}
	if cfg.Proxy.GraceWindow == 0 {
		cfg.Proxy.GraceWindow = 60 * time.Second
	}
	if cfg.Proxy.HealthCheckInterval == 0 {
		cfg.Proxy.HealthCheckInterval = 5 * time.Minute
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseBackoff == 0 {
		cfg.Retry.BaseBackoff = time.Second
	}
	if cfg.Retry.BackoffFactor == 0 {
		cfg.Retry.BackoffFactor = 2.0
	}
	if cfg.Retry.BackoffMax == 0 {
		cfg.Retry.BackoffMax = 60 * time.Second
	}

	if cfg.Escalation.MaxLevel == 0 {
		cfg.Escalation.MaxLevel = 5
	}

	if cfg.Transport.ProbeURL == "" {
		cfg.Transport.ProbeURL = "https://www.google.com/generate_204"
	}
	if cfg.Transport.Timeout == 0 {
		cfg.Transport.Timeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
