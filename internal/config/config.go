// Package config loads the YAML configuration shared by the browser CLI and
// the proxy server. Environment variables prefixed IRON_ override the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/damacus/iron-folders/internal/backend/factory"
	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration
const DefaultPath = "~/.iron-folders/config.yaml"

type Config struct {
	Log         logging.Config           `yaml:"log"`
	Server      ServerConfig             `yaml:"server"`
	Credentials CredentialsConfig        `yaml:"credentials"`
	Timeout     string                   `yaml:"timeout"` // e.g. "30s"
	Proxy       ProxyConfig              `yaml:"proxy"`
	Services    map[string]ServiceConfig `yaml:"services"`
	Upload      UploadConfig             `yaml:"upload"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AdapterTTL is how long the proxy keeps an adapter per credential set
	AdapterTTL string `yaml:"adapter_ttl"`
}

type CredentialsConfig struct {
	DB      string `yaml:"db"`       // bbolt database path
	KeyFile string `yaml:"key_file"` // AES key used to seal records
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type ServiceConfig struct {
	Mode     string `yaml:"mode"` // "direct" or "proxy"
	Endpoint string `yaml:"endpoint"`
	UseSSL   *bool  `yaml:"use_ssl"`
}

type UploadConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CallTimeout parses Timeout. Validate guarantees it parses.
func (c *Config) CallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// AdapterTTL parses Server.AdapterTTL
func (c *Config) AdapterTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.AdapterTTL)
	if err != nil {
		return 0
	}
	return d
}

// FactoryConfig converts the services section for backend/factory
func (c *Config) FactoryConfig() factory.Config {
	services := make(map[string]factory.Service, len(c.Services))
	for name, s := range c.Services {
		services[name] = factory.Service{
			Mode:     s.Mode,
			Endpoint: s.Endpoint,
			UseSSL:   s.UseSSL,
		}
	}
	return factory.Config{
		ProxyURL: c.Proxy.URL,
		Services: services,
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d < 0 {
		return fmt.Errorf("timeout must be a non-negative duration (got %q)", c.Timeout)
	}
	if c.Server.AdapterTTL != "" {
		if _, err := time.ParseDuration(c.Server.AdapterTTL); err != nil {
			return fmt.Errorf("server.adapter_ttl: %w", err)
		}
	}
	if c.Credentials.DB == "" {
		return fmt.Errorf("credentials.db must be configured")
	}
	if c.Credentials.KeyFile == "" {
		return fmt.Errorf("credentials.key_file must be configured")
	}
	known := make(map[string]bool)
	for _, s := range credentials.KnownServices() {
		known[s] = true
	}
	usesProxy := false
	for name, s := range c.Services {
		if !known[name] {
			return fmt.Errorf("services.%s: unknown service (want one of %s)", name, strings.Join(credentials.KnownServices(), ", "))
		}
		switch s.Mode {
		case "", factory.ModeDirect:
		case factory.ModeProxy:
			if credentials.ExpectsURL(name) {
				return fmt.Errorf("services.%s: proxy mode is not available for this service", name)
			}
			usesProxy = true
		default:
			return fmt.Errorf("services.%s: mode must be %q or %q (got %q)", name, factory.ModeDirect, factory.ModeProxy, s.Mode)
		}
	}
	if usesProxy && !strings.HasPrefix(c.Proxy.URL, "http://") && !strings.HasPrefix(c.Proxy.URL, "https://") {
		return fmt.Errorf("proxy.url must be an http(s) URL (got %q)", c.Proxy.URL)
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload.allowed_extensions: %q must start with a dot", ext)
		}
	}
	return nil
}

func Default() *Config {
	return &Config{
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			AdapterTTL: "10m",
		},
		Credentials: CredentialsConfig{
			DB:      "~/.iron-folders/credentials.db",
			KeyFile: "~/.iron-folders/credentials.key",
		},
		Timeout: "30s",
		Proxy: ProxyConfig{
			URL: proxy.DefaultURL,
		},
		Services: map[string]ServiceConfig{},
	}
}

// Load reads path (if any) over the defaults, then applies the environment
// and expands ~ in file paths.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expand config path: %w", err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is Load that falls back to defaults when path does not exist
func LoadOptional(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	if _, err := os.Stat(expanded); os.IsNotExist(err) {
		return Load("")
	}
	return Load(expanded)
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Credentials.DB, &c.Credentials.KeyFile} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("IRON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("IRON_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("IRON_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("IRON_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("IRON_CREDENTIALS_DB"); v != "" {
		cfg.Credentials.DB = v
	}
	if v := os.Getenv("IRON_CREDENTIALS_KEY_FILE"); v != "" {
		cfg.Credentials.KeyFile = v
	}
	if v := os.Getenv("IRON_TIMEOUT"); v != "" {
		cfg.Timeout = v
	}
	if v := os.Getenv("IRON_PROXY_URL"); v != "" {
		cfg.Proxy.URL = v
	}
	if v := os.Getenv("IRON_ALLOWED_EXTENSIONS"); v != "" {
		cfg.Upload.AllowedExtensions = parseCSV(v)
	}
	if cfg.Services == nil {
		cfg.Services = map[string]ServiceConfig{}
	}
	for _, name := range credentials.KnownServices() {
		prefix := "IRON_" + strings.ToUpper(name) + "_"
		s := cfg.Services[name]
		changed := false
		if v := os.Getenv(prefix + "MODE"); v != "" {
			s.Mode = v
			changed = true
		}
		if v := os.Getenv(prefix + "ENDPOINT"); v != "" {
			s.Endpoint = v
			changed = true
		}
		if v := os.Getenv(prefix + "USE_SSL"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				s.UseSSL = &b
				changed = true
			}
		}
		if changed {
			cfg.Services[name] = s
		}
	}
	// MINIO_ENDPOINT predates the IRON_ prefix
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		s := cfg.Services[credentials.ServiceMinio]
		if s.Endpoint == "" {
			s.Endpoint = v
			cfg.Services[credentials.ServiceMinio] = s
		}
	}
}

func parseCSV(v string) []string {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Write saves cfg as YAML at path, creating parent directories
func Write(path string, cfg *Config) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(expanded, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
