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
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.SendInterval())
	assert.Equal(t, 60*time.Second, cfg.Dispatch.SchedulerPoll())
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.CleanupInterval())
	assert.Equal(t, 2*time.Hour, cfg.Dispatch.StallTimeout())
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
dispatch:
  send_interval_ms: 250
  stall_timeout_hours: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.SendInterval())
	assert.Equal(t, 4*time.Hour, cfg.Dispatch.StallTimeout())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  url: postgres://file\n")

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("AUTOMATION_WEBHOOK_URL", "https://hooks.example.com/campaigns")
	t.Setenv("AWS_SES_REGION", "eu-west-1")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "https://hooks.example.com/campaigns", cfg.Webhook.URL)
	assert.Equal(t, "eu-west-1", cfg.SES.Region)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
