package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, -0.5, cfg.Alerting.ScoreThreshold)
	assert.Equal(t, 5, cfg.Alerting.CountLimit)
	assert.Equal(t, time.Hour, cfg.Alerting.Cooldown)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
lines_path: /tmp/lines.txt
poll_interval: 500ms
alerting:
  score_threshold: -0.3
  count_limit: 3
  cooldown: 30m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lines.txt", cfg.LinesPath)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, -0.3, cfg.Alerting.ScoreThreshold)
	assert.Equal(t, 3, cfg.Alerting.CountLimit)
	assert.Equal(t, 30*time.Minute, cfg.Alerting.Cooldown)
	// Untouched values keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Alerting.DeliverTimeout)
}

func TestLoad_EnvOverridesPaths(t *testing.T) {
	t.Setenv("SENTIGUARD_DB", "/tmp/override.db")
	t.Setenv("SENTIGUARD_LINES", "/tmp/override.txt")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, "/tmp/override.txt", cfg.LinesPath)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above 1", func(c *Config) { c.Alerting.ScoreThreshold = 1.5 }},
		{"threshold below -1", func(c *Config) { c.Alerting.ScoreThreshold = -1.5 }},
		{"zero count limit", func(c *Config) { c.Alerting.CountLimit = 0 }},
		{"negative cooldown", func(c *Config) { c.Alerting.Cooldown = -time.Minute }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"empty lines path", func(c *Config) { c.LinesPath = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad digest time", func(c *Config) { c.Digest.Enabled = true; c.Digest.Time = "25:00" }},
		{"bad digest timezone", func(c *Config) { c.Digest.Enabled = true; c.Digest.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTime(t *testing.T) {
	assert.NoError(t, ValidateTime("00:00"))
	assert.NoError(t, ValidateTime("23:59"))
	assert.Error(t, ValidateTime("24:00"))
	assert.Error(t, ValidateTime("12:60"))
	assert.Error(t, ValidateTime("9:00"))
	assert.Error(t, ValidateTime("ab:cd"))
}

func TestSMTPConfig_Configured(t *testing.T) {
	assert.False(t, SMTPConfig{}.Configured())
	assert.True(t, SMTPConfig{FromAddress: "a@b.c", ToAddress: "d@e.f", Server: "smtp.example.com"}.Configured())
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "alerting: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
