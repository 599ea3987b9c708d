// Package config defines and loads the gatekit configuration.
package config

import (
	"fmt"
	"time"
)

// Config represents the main gatekit configuration.
type Config struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Registry  RegistryConfig  `json:"registry" mapstructure:"registry"`
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	Approval  ApprovalConfig  `json:"approval" mapstructure:"approval"`
	Monitor   MonitorConfig   `json:"monitor" mapstructure:"monitor"`
	Metrics   MetricsConfig   `json:"metrics" mapstructure:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"` // debug, info, warn, error
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// RegistryConfig holds hot/cold working-set thresholds.
type RegistryConfig struct {
	HotThreshold int64 `json:"hot_threshold" mapstructure:"hot_threshold"`
	MaxHotTools  int   `json:"max_hot_tools" mapstructure:"max_hot_tools"`
	MinHotTools  int   `json:"min_hot_tools" mapstructure:"min_hot_tools"`
}

// RateLimitConfig holds default quotas and per-tool overrides.
type RateLimitConfig struct {
	PerMinute       int                       `json:"per_minute" mapstructure:"per_minute"`
	PerHour         int                       `json:"per_hour" mapstructure:"per_hour"`
	PerDay          int                       `json:"per_day" mapstructure:"per_day"`
	CooldownSeconds int                       `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`
	Overrides       map[string]ToolLimitsJSON `json:"overrides" mapstructure:"overrides"`
}

// ToolLimitsJSON is a per-tool quota override. It replaces the defaults
// wholesale: there is no merging of partial overrides.
type ToolLimitsJSON struct {
	PerMinute       int `json:"per_minute" mapstructure:"per_minute"`
	PerHour         int `json:"per_hour" mapstructure:"per_hour"`
	PerDay          int `json:"per_day" mapstructure:"per_day"`
	CooldownSeconds int `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`
}

// ApprovalConfig holds the approval policy and gate expiry settings.
type ApprovalConfig struct {
	ToolSubstrings       []string `json:"tool_substrings" mapstructure:"tool_substrings"`
	IntegrationIDs       []string `json:"integration_ids" mapstructure:"integration_ids"`
	Patterns             []string `json:"patterns" mapstructure:"patterns"`
	ExpirationMinutes    int      `json:"expiration_minutes" mapstructure:"expiration_minutes"`
	SweepIntervalMinutes int      `json:"sweep_interval_minutes" mapstructure:"sweep_interval_minutes"`
}

// MonitorConfig holds retention and anomaly tuning.
type MonitorConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	RetentionHours int     `json:"retention_hours" mapstructure:"retention_hours"`
	DetectMinutes  int     `json:"detect_interval_minutes" mapstructure:"detect_interval_minutes"`
	ErrorRateDelta float64 `json:"error_rate_delta" mapstructure:"error_rate_delta"`
	HighErrorRate  float64 `json:"high_error_rate" mapstructure:"high_error_rate"`
	MediumErrRate  float64 `json:"medium_error_rate" mapstructure:"medium_error_rate"`
	LatencyFactor  float64 `json:"latency_factor" mapstructure:"latency_factor"`
	LatencyHigh    float64 `json:"latency_high_factor" mapstructure:"latency_high_factor"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  false,
		},
		Registry: RegistryConfig{
			HotThreshold: 10,
			MaxHotTools:  10,
			MinHotTools:  5,
		},
		RateLimit: RateLimitConfig{
			PerMinute:       30,
			PerHour:         300,
			PerDay:          1000,
			CooldownSeconds: 60,
		},
		Approval: ApprovalConfig{
			ExpirationMinutes:    60,
			SweepIntervalMinutes: 5,
		},
		Monitor: MonitorConfig{
			Enabled:        true,
			RetentionHours: 168,
			DetectMinutes:  60,
			ErrorRateDelta: 0.2,
			HighErrorRate:  0.5,
			MediumErrRate:  0.3,
			LatencyFactor:  2,
			LatencyHigh:    3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  ":9464",
		},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Registry.MinHotTools > c.Registry.MaxHotTools {
		return fmt.Errorf("registry min_hot_tools (%d) exceeds max_hot_tools (%d)",
			c.Registry.MinHotTools, c.Registry.MaxHotTools)
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.PerHour <= 0 || c.RateLimit.PerDay <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.Approval.ExpirationMinutes <= 0 {
		return fmt.Errorf("approval expiration_minutes must be positive")
	}
	if c.Monitor.RetentionHours <= 0 {
		return fmt.Errorf("monitor retention_hours must be positive")
	}
	return nil
}

// Retention returns the monitor retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Monitor.RetentionHours) * time.Hour
}
