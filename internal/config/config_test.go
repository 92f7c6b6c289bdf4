package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "https://api.elevenlabs.io/v1", cfg.ElevenLabs.BaseURL)
	assert.Equal(t, "memory", cfg.Storage.Store)
	assert.Equal(t, 4000, cfg.Simulation.MinDelayMs)
	assert.Equal(t, 8000, cfg.Simulation.MaxDelayMs)
	assert.InDelta(t, 0.7, cfg.Simulation.SuccessRate, 0.001)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoadPartialFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 8080
twilio:
  accountSid: AC123
  authToken: secret
  phoneNumber: "+14155550100"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "AC123", cfg.Twilio.AccountSID)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "memory", cfg.Storage.Store)
	assert.Equal(t, 4000, cfg.Simulation.MinDelayMs)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.IsType(t, &ConfigError{}, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
twilio:
  accountSid: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("TWILIO_ACCOUNT_SID", "AC-from-env")
	t.Setenv("ELEVENLABS_API_KEY", "xi-from-env")
	t.Setenv("SERVER_URL", "https://example.ngrok.app")
	t.Setenv("PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "AC-from-env", cfg.Twilio.AccountSID)
	assert.Equal(t, "xi-from-env", cfg.ElevenLabs.APIKey)
	assert.Equal(t, "https://example.ngrok.app", cfg.Server.PublicURL)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadExpandsSensitiveFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
twilio:
  authToken: ${TEST_TWILIO_TOKEN}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("TEST_TWILIO_TOKEN", "expanded-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.Twilio.AuthToken)
}

func TestExpandEnvVarsLeavesUnsetUnchanged(t *testing.T) {
	assert.Equal(t, "${DEFINITELY_NOT_SET_12345}", expandEnvVars("${DEFINITELY_NOT_SET_12345}"))
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))

	cfg.Server.Port = 99999
	cfg.Server.Bind = "tailnet"
	cfg.Server.PublicURL = "not a url"
	cfg.Storage.Store = "postgres"
	cfg.Simulation.SuccessRate = 1.5
	cfg.Simulation.MinDelayMs = 8000
	cfg.Simulation.MaxDelayMs = 4000
	cfg.Logging.Level = "loud"

	issues := Validate(&cfg)
	require.Len(t, issues, 7)

	paths := make([]string, len(issues))
	for i, issue := range issues {
		paths[i] = issue.Path
	}
	assert.Contains(t, paths, "server.port")
	assert.Contains(t, paths, "server.bind")
	assert.Contains(t, paths, "server.publicUrl")
	assert.Contains(t, paths, "storage.store")
	assert.Contains(t, paths, "simulation.successRate")
	assert.Contains(t, paths, "simulation")
	assert.Contains(t, paths, "logging.level")
}

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABLECALL_HOME", dir)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), paths.Config)
	assert.Equal(t, dir, paths.Data)
}
