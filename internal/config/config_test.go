package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.EqualValues(t, 10, cfg.Registry.HotThreshold)
	assert.Equal(t, 10, cfg.Registry.MaxHotTools)
	assert.Equal(t, 5, cfg.Registry.MinHotTools)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.Equal(t, 300, cfg.RateLimit.PerHour)
	assert.Equal(t, 1000, cfg.RateLimit.PerDay)
	assert.Equal(t, 60, cfg.Approval.ExpirationMinutes)
	assert.Equal(t, 168, cfg.Monitor.RetentionHours)
	assert.Equal(t, 168*time.Hour, cfg.Retention())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"min above max", func(c *Config) { c.Registry.MinHotTools = 20 }, false},
		{"zero minute limit", func(c *Config) { c.RateLimit.PerMinute = 0 }, false},
		{"negative day limit", func(c *Config) { c.RateLimit.PerDay = -1 }, false},
		{"zero expiration", func(c *Config) { c.Approval.ExpirationMinutes = 0 }, false},
		{"zero retention", func(c *Config) { c.Monitor.RetentionHours = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.AuditFile)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatekit.json")
	raw := `{
		"data_dir": "` + dir + `",
		"rate_limit": {"per_minute": 5, "overrides": {"tool_x": {"per_minute": 1, "per_hour": 2, "per_day": 3}}},
		"approval": {"tool_substrings": ["delete"], "expiration_minutes": 15}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
	assert.Equal(t, 300, cfg.RateLimit.PerHour, "unset fields keep defaults")
	assert.Equal(t, 15, cfg.Approval.ExpirationMinutes)
	assert.Equal(t, []string{"delete"}, cfg.Approval.ToolSubstrings)

	override, ok := cfg.RateLimit.Overrides["tool_x"]
	require.True(t, ok)
	assert.Equal(t, 1, override.PerMinute)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "audit.log"), cfg.Logging.AuditFile)
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatekit.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rate_limit": {"per_minute": -1}}`), 0644))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}
