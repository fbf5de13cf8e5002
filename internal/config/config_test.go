package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `
browser:
  driver: static
  timeout: 45s
retry:
  max_attempts: 5
  base_delay: 250ms
runner:
  workers: 4
  pass_threshold: 0.8
target:
  base_url: http://localhost:8080/
  elements:
    publish:
      description: publish button
      primary: "#publish"
      fallbacks: ["text=公開"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverStatic, cfg.Browser.Driver)
	assert.Equal(t, 45*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 4, cfg.Runner.Workers)
	assert.InDelta(t, 0.8, cfg.Runner.PassThreshold, 1e-9)
	assert.Equal(t, "http://localhost:8080/", cfg.Target.BaseURL)

	// Defaults survive where the file is silent
	assert.Equal(t, 2*time.Second, cfg.Detector.CandidateTimeout)
	assert.Equal(t, 30*time.Second, cfg.Metrics.SlowThreshold)
	assert.Equal(t, DefaultUserAgents, cfg.Browser.UserAgents)
	assert.Contains(t, cfg.Target.Elements, ElementUsername)

	publish := cfg.Target.Elements["publish"]
	assert.Equal(t, "#publish", publish.Primary)
	assert.Equal(t, []string{"text=公開"}, publish.Fallbacks)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown driver", content: "browser:\n  driver: selenium\n"},
		{name: "threshold above one", content: "runner:\n  pass_threshold: 1.5\n"},
		{name: "no workers", content: "runner:\n  workers: 0\n"},
		{name: "element without primary", content: "target:\n  elements:\n    x:\n      description: broken\n"},
		{name: "malformed yaml", content: "browser: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateDefault_Valid(t *testing.T) {
	assert.NoError(t, CreateDefault().Validate())
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "user@example.com")
	t.Setenv(EnvPassword, "")

	creds := LoadCredentials()
	assert.Equal(t, "user@example.com", creds.Username)
	assert.False(t, creds.Valid())

	t.Setenv(EnvPassword, "secret")
	assert.True(t, LoadCredentials().Valid())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "kept")
	path := writeFile(t, ".env", EnvUsername+"=from-file\n"+EnvPassword+"=overridden\n")

	require.NoError(t, LoadEnv("", filepath.Join(t.TempDir(), "missing.env"), path))

	// godotenv does not override variables that are already set, even empty ones
	assert.Equal(t, "", os.Getenv(EnvUsername))
	assert.Equal(t, "kept", os.Getenv(EnvPassword))
}
