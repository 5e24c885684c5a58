package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/collabflow/collabflow-cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COLLABFLOW_HOME", dir)
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(config.New(""))

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090/api", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 0.0, cfg.RateLimit)
	assert.Equal(t, "refreshToken", cfg.RefreshCookie)
	assert.Equal(t, 4, cfg.Workers)
	assert.Empty(t, cfg.DBPath)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	content := `api_url: https://collabflow.example.com/api
request_timeout: 5s
refresh_timeout: 2s
rate_limit: 10
workers: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := config.Load(config.New(""))

	require.NoError(t, err)
	assert.Equal(t, "https://collabflow.example.com/api", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api_url: https://file.example.com/api\n"), 0o600))
	t.Setenv("COLLABFLOW_API_URL", "https://env.example.com/api")
	t.Setenv("COLLABFLOW_WORKERS", "2")

	cfg, err := config.Load(config.New(""))

	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/api", cfg.APIURL)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("refresh_cookie: rt\n"), 0o600))

	cfg, err := config.Load(config.New(file))

	require.NoError(t, err)
	assert.Equal(t, "rt", cfg.RefreshCookie)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := config.Load(config.New(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			APIURL:         "http://localhost:9090/api",
			RequestTimeout: time.Second,
			RefreshTimeout: time.Second,
			RefreshCookie:  "refreshToken",
			Workers:        4,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"bad scheme", func(c *config.Config) { c.APIURL = "ftp://host/api" }},
		{"no host", func(c *config.Config) { c.APIURL = "http://" }},
		{"zero request timeout", func(c *config.Config) { c.RequestTimeout = 0 }},
		{"negative refresh timeout", func(c *config.Config) { c.RefreshTimeout = -time.Second }},
		{"negative rate limit", func(c *config.Config) { c.RateLimit = -1 }},
		{"empty cookie name", func(c *config.Config) { c.RefreshCookie = "" }},
		{"too many workers", func(c *config.Config) { c.Workers = 100 }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
