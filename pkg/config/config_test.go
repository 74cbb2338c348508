package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Suggest.CacheTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Suggest.MinInterval)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, cfg.Suggest.RetryDelays)
	assert.Equal(t, time.Hour, cfg.Trends.CacheTTL)
	assert.Equal(t, 5, cfg.WordPress.MaxPages)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9000
research:
  maxKeywords: 20
trends:
  cacheTTL: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("GOOGLE_TRENDS_PROXY", "http://proxy.local:3128")
	t.Setenv("MAX_PAGES_PER_REQUEST", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Research.MaxKeywords)
	assert.Equal(t, 30*time.Minute, cfg.Trends.CacheTTL)
	assert.Equal(t, "http://proxy.local:3128", cfg.Trends.Proxy)
	assert.Equal(t, 7, cfg.WordPress.MaxPages)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAX_KEYWORDS_PER_REQUEST=12\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MAX_KEYWORDS_PER_REQUEST") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Research.MaxKeywords)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("non numeric cap", func(t *testing.T) {
		t.Setenv("MAX_PAGES_PER_REQUEST", "lots")
		_, err := Load("")
		assert.ErrorContains(t, err, "MAX_PAGES_PER_REQUEST must be a number")
	})
	t.Run("bad proxy", func(t *testing.T) {
		t.Setenv("GOOGLE_TRENDS_PROXY", "not a url")
		_, err := Load("")
		assert.ErrorContains(t, err, "GOOGLE_TRENDS_PROXY")
	})
	t.Run("bad trusted proxy", func(t *testing.T) {
		t.Setenv("KR_TRUSTED_PROXIES", "10.0.0.0/8,proxy.local")
		_, err := Load("")
		assert.ErrorContains(t, err, `trusted proxy "proxy.local"`)
	})
	t.Run("bad level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		_, err := Load("")
		assert.ErrorContains(t, err, "LOG_LEVEL")
	})
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KR_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
	assert.Empty(t, Default().Server.TrustedProxies)
}
