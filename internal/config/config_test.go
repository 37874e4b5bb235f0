package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/damacus/iron-folders/internal/backend/factory"
	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
	assert.Equal(t, 10*time.Minute, cfg.AdapterTTL())
	assert.Equal(t, proxy.DefaultURL, cfg.Proxy.URL)
	assert.Empty(t, cfg.Upload.AllowedExtensions)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
log:
  level: debug
  format: json
server:
  port: 9090
credentials:
  db: ` + filepath.Join(dir, "creds.db") + `
  key_file: ` + filepath.Join(dir, "creds.key") + `
timeout: 5s
proxy:
  url: http://localhost:3000
services:
  wasabi:
    mode: proxy
  minio:
    endpoint: localhost:9000
    use_ssl: false
upload:
  allowed_extensions: [".txt", ".csv"]
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout())
	assert.Equal(t, []string{".txt", ".csv"}, cfg.Upload.AllowedExtensions)

	fc := cfg.FactoryConfig()
	assert.Equal(t, "http://localhost:3000", fc.ProxyURL)
	assert.Equal(t, factory.ModeProxy, fc.Services["wasabi"].Mode)
	require.NotNil(t, fc.Services["minio"].UseSSL)
	assert.False(t, *fc.Services["minio"].UseSSL)
	assert.Equal(t, "localhost:9000", fc.Services["minio"].Endpoint)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("IRON_PORT", "4000")
	t.Setenv("IRON_TIMEOUT", "1m")
	t.Setenv("IRON_PROXY_URL", "https://proxy.example")
	t.Setenv("IRON_ALLOWED_EXTENSIONS", ".pdf, .png,")
	t.Setenv("IRON_AWS_ENDPOINT", "s3.example.com")
	t.Setenv("IRON_WASABI_MODE", "proxy")
	t.Setenv("IRON_MINIO_USE_SSL", "true")
	t.Setenv("MINIO_ENDPOINT", "play.min.io:9000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.CallTimeout())
	assert.Equal(t, "https://proxy.example", cfg.Proxy.URL)
	assert.Equal(t, []string{".pdf", ".png"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "s3.example.com", cfg.Services["aws"].Endpoint)
	assert.Equal(t, "proxy", cfg.Services["wasabi"].Mode)
	require.NotNil(t, cfg.Services["minio"].UseSSL)
	assert.True(t, *cfg.Services["minio"].UseSSL)
	assert.Equal(t, "play.min.io:9000", cfg.Services["minio"].Endpoint)
	require.NoError(t, cfg.Validate())
}

func TestLoadExpandsHome(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotContains(t, cfg.Credentials.DB, "~")
	assert.True(t, filepath.IsAbs(cfg.Credentials.KeyFile))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad timeout", func(c *Config) { c.Timeout = "soon" }, "timeout"},
		{"negative timeout", func(c *Config) { c.Timeout = "-1s" }, "timeout"},
		{"bad ttl", func(c *Config) { c.Server.AdapterTTL = "forever" }, "adapter_ttl"},
		{"no db", func(c *Config) { c.Credentials.DB = "" }, "credentials.db"},
		{"no key", func(c *Config) { c.Credentials.KeyFile = "" }, "key_file"},
		{"unknown service", func(c *Config) { c.Services["dropbox"] = ServiceConfig{} }, "unknown service"},
		{"bad mode", func(c *Config) { c.Services["aws"] = ServiceConfig{Mode: "ftp"} }, "mode must be"},
		{"azure via proxy", func(c *Config) { c.Services["azure"] = ServiceConfig{Mode: "proxy"} }, "proxy mode"},
		{"proxy without url", func(c *Config) {
			c.Services["aws"] = ServiceConfig{Mode: "proxy"}
			c.Proxy.URL = "localhost"
		}, "proxy.url"},
		{"extension without dot", func(c *Config) { c.Upload.AllowedExtensions = []string{"pdf"} }, "must start with a dot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Proxy.URL = "http://localhost:1234"

	require.NoError(t, Write(path, cfg))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1234", loaded.Proxy.URL)
}
