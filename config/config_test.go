package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.Depth != 2 {
		t.Errorf("Depth = %d, want 2", cfg.Depth)
	}
	if cfg.NamespaceMarker != "/portal/" {
		t.Errorf("NamespaceMarker = %q", cfg.NamespaceMarker)
	}
	if !reflect.DeepEqual(cfg.ExcludedPaths, []string{"/servicio/"}) {
		t.Errorf("ExcludedPaths = %v", cfg.ExcludedPaths)
	}
	if cfg.StoreBackend != "sqlite" {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if !strings.HasSuffix(cfg.DataDir, AppName) {
		t.Errorf("DataDir = %q, want it under the XDG data home", cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "negative depth", modify: func(c *Config) { c.Depth = -1 }, want: ErrInvalidDepth},
		{name: "zero depth is fine", modify: func(c *Config) { c.Depth = 0 }, want: nil},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -5 }, want: ErrInvalidMaxPages},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero rate", modify: func(c *Config) { c.RateLimit = 0 }, want: ErrInvalidRateLimit},
		{name: "negative retries", modify: func(c *Config) { c.Retries = -1 }, want: ErrInvalidRetries},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "zero body size", modify: func(c *Config) { c.MaxBodySize = 0 }, want: ErrInvalidMaxBodySize},
		{name: "empty marker", modify: func(c *Config) { c.NamespaceMarker = "/" }, want: ErrEmptyNamespaceMarker},
		{name: "unknown visited backend", modify: func(c *Config) { c.VisitedBackend = "disk" }, want: ErrUnknownVisitedBackend},
		{name: "unknown store", modify: func(c *Config) { c.StoreBackend = "postgres" }, want: ErrUnknownStoreBackend},
		{name: "redis without address", modify: func(c *Config) { c.StoreBackend = "redis"; c.RedisAddr = "" }, want: ErrMissingRedisAddr},
		{name: "bloom backend", modify: func(c *Config) { c.VisitedBackend = "bloom" }, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFileAndApply(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
crawl:
  depth: 4
  timeout: 15s
  rate_limit: 1.5
  respect_robots: false
  excluded_paths: ["/servicio/", "/buscador/"]
  visited_backend: bloom
store:
  backend: redis
  redis_addr: 10.0.0.5:6379
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}

	cfg := NewConfig()
	cfg.Apply(f)

	if cfg.Depth != 4 {
		t.Errorf("Depth = %d, want 4", cfg.Depth)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
	if cfg.RateLimit != 1.5 {
		t.Errorf("RateLimit = %v, want 1.5", cfg.RateLimit)
	}
	if cfg.RespectRobots {
		t.Error("RespectRobots = true, want false from file")
	}
	if !reflect.DeepEqual(cfg.ExcludedPaths, []string{"/servicio/", "/buscador/"}) {
		t.Errorf("ExcludedPaths = %v", cfg.ExcludedPaths)
	}
	if cfg.VisitedBackend != "bloom" || cfg.StoreBackend != "redis" || cfg.RedisAddr != "10.0.0.5:6379" {
		t.Errorf("backends = %q/%q/%q", cfg.VisitedBackend, cfg.StoreBackend, cfg.RedisAddr)
	}

	// Untouched settings keep their defaults.
	if cfg.NamespaceMarker != DefaultNamespaceMarker || cfg.Retries != DefaultRetries {
		t.Errorf("defaults overwritten: marker %q, retries %d", cfg.NamespaceMarker, cfg.Retries)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("crawl: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfigFile(bad); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestFindConfigFileExplicitPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("crawl: {}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if got := FindConfigFile(path); got != path {
		t.Errorf("FindConfigFile(%q) = %q", path, got)
	}
	if got := FindConfigFile(path + ".missing"); got != "" {
		t.Errorf("FindConfigFile(missing) = %q, want empty", got)
	}
}

func TestApplyNilFile(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.Apply(nil)
	if !reflect.DeepEqual(cfg, NewConfig()) {
		t.Error("Apply(nil) changed the config")
	}
}
