package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendCLI, cfg.GitHub.StructureBackend)
	assert.Equal(t, 30, cfg.Search.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.Command.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
github:
  structure_backend: api
  search_api_rate_limit: 10
command:
  timeout: 45s
search:
  default_limit: 50
`)
	t.Setenv(SearchDefaultLimitEnvVar, "20")
	t.Setenv(CacheDisabledEnvVar, "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendAPI, cfg.GitHub.StructureBackend)
	assert.Equal(t, 10, cfg.GitHub.SearchAPIRateLimit)
	assert.Equal(t, 45*time.Second, cfg.Command.Timeout)
	assert.Equal(t, 20, cfg.Search.DefaultLimit, "environment overrides file")
	assert.True(t, cfg.Cache.Disabled)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMMAND_TIMEOUT=12\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv(CommandTimeoutEnvVar) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.Command.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "explicit config path must exist")

	_, err = Load(writeConfig(t, "github: [unclosed"))
	assert.Error(t, err)

	t.Setenv(GitHubStructureBackendEnvVar, "graphql")
	_, err = Load(writeConfig(t, "{}"))
	assert.ErrorContains(t, err, "graphql")
}

func TestLoad_RejectsNonPositiveRateLimits(t *testing.T) {
	t.Chdir(t.TempDir())

	for name, body := range map[string]string{
		"search":   "github:\n  search_api_rate_limit: 0\n",
		"core":     "github:\n  core_api_rate_limit: -5\n",
		"packages": "packages:\n  rate_limit: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorContains(t, err, "rate limit must be positive")
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Token = "ghp_secret"

	assert.Equal(t, "***", cfg.Redacted().GitHub.Token)
	assert.Equal(t, "ghp_secret", cfg.GitHub.Token)
}
