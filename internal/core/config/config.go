package config

import (
	"fmt"
	"time"

	"github.com/vietddude/pacer/internal/core/mode"
	redisclient "github.com/vietddude/pacer/internal/infra/redis"
	"github.com/vietddude/pacer/internal/limiter"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig              `yaml:"server"`
	Mode       ModeConfig                `yaml:"mode"`
	Proxy      ProxyConfig               `yaml:"proxy"`
	Retry      RetryConfig               `yaml:"retry"`
	Escalation EscalationConfig          `yaml:"escalation"`
	Categories map[string]limiter.Config `yaml:"categories"`
	Transport  TransportConfig           `yaml:"transport"`
	Redis      redisclient.Config        `yaml:"redis"`
	Logging    LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds the metrics/health HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ModeConfig selects the speed mode: a named preset, or "custom" with the
// parameters spelled out.
type ModeConfig struct {
	Name   string      `yaml:"name"`
	Custom *CustomMode `yaml:"custom"`
}

// CustomMode mirrors the speed mode parameters for user-defined profiles.
type CustomMode struct {
	MaxConcurrency  int           `yaml:"max_concurrency"`
	DelayMin        time.Duration `yaml:"delay_min"`
	DelayMax        time.Duration `yaml:"delay_max"`
	RatePerMinute   int           `yaml:"rate_per_minute"`
	BurstSize       int           `yaml:"burst_size"`
	ProxyMultiplier float64       `yaml:"proxy_multiplier"`
	ErrorBackoff    float64       `yaml:"error_backoff"`
}

// SpeedMode resolves the configured mode into its parameter set.
func (m ModeConfig) SpeedMode() (mode.SpeedMode, error) {
	if m.Name == "custom" {
		if m.Custom == nil {
			return mode.SpeedMode{}, fmt.Errorf("mode %q requires a custom block", m.Name)
		}
		sm := mode.SpeedMode{
			Name:            "custom",
			MaxConcurrency:  m.Custom.MaxConcurrency,
			DelayMin:        m.Custom.DelayMin,
			DelayMax:        m.Custom.DelayMax,
			RatePerMinute:   m.Custom.RatePerMinute,
			BurstSize:       m.Custom.BurstSize,
			ProxyMultiplier: m.Custom.ProxyMultiplier,
			ErrorBackoff:    m.Custom.ErrorBackoff,
		}
		if err := sm.Validate(); err != nil {
			return mode.SpeedMode{}, fmt.Errorf("custom mode: %w", err)
		}
		return sm, nil
	}
	return mode.Get(m.Name)
}

// ProxyConfig holds the proxy pool and health checker settings.
type ProxyConfig struct {
	Endpoints           []string      `yaml:"endpoints"`
	RotationStrategy    string        `yaml:"rotation_strategy"` // weighted, round_robin, random
	MaxFailures         int           `yaml:"max_failures"`
	MinScore            float64       `yaml:"min_score"`
	GraceWindow         time.Duration `yaml:"grace_window"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	Sticky              bool          `yaml:"sticky"`
}

// RetryConfig holds the retry/backoff settings.
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	BaseBackoff   time.Duration `yaml:"base_backoff"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	BackoffMax    time.Duration `yaml:"backoff_max"`
	NoJitter      bool          `yaml:"no_jitter"` // jitter is on unless opted out
}

// EscalationConfig holds the hostility escalation settings.
type EscalationConfig struct {
	MaxLevel int `yaml:"max_level"`
}

// TransportConfig holds outbound HTTP settings.
type TransportConfig struct {
	ProbeURL string        `yaml:"probe_url"` // endpoint health probes hit through proxies
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
