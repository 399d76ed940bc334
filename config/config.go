// Package config holds portalaudit settings: built-in defaults, an optional
// YAML file, and the XDG directories results are stored under.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Defaults.
const (
	AppName = "portalaudit"

	DefaultDepth           = 2
	DefaultTimeout         = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultRetries         = 2
	DefaultConcurrency     = 2
	DefaultMaxBodySize     = 5 * 1024 * 1024
	DefaultNamespaceMarker = "/portal/"
	DefaultStoreBackend    = "sqlite"
	DefaultVisitedBackend  = "memory"
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultUserAgent       = "portalaudit/1.0 (+https://github.com/lukemcguire/portalaudit)"
)

// DefaultExcludedPaths lists sub-paths that hold services rather than pages.
var DefaultExcludedPaths = []string{"/servicio/"}

// Config holds every setting the CLI passes down. It is built once from
// defaults, the config file and flags, then handed to the crawler and the
// store; nothing reads it globally.
type Config struct {
	// Crawl.
	Depth           int
	MaxPages        int // 0 means unlimited
	Timeout         time.Duration
	RateLimit       float64 // requests per second per crawl
	AdaptiveRate    bool
	Retries         int
	UserAgent       string
	RespectRobots   bool
	NamespaceMarker string
	ExcludedPaths   []string
	MaxBodySize     int64
	VisitedBackend  string
	Concurrency     int // seeds crawled at once

	// Store.
	StoreBackend string
	DataDir      string
	RedisAddr    string
	RedisPrefix  string

	Verbose        bool
	ConfigFilePath string
}

// NewConfig returns a Config filled with defaults.
func NewConfig() *Config {
	return &Config{
		Depth:           DefaultDepth,
		Timeout:         DefaultTimeout,
		RateLimit:       DefaultRateLimit,
		Retries:         DefaultRetries,
		UserAgent:       DefaultUserAgent,
		RespectRobots:   true,
		NamespaceMarker: DefaultNamespaceMarker,
		ExcludedPaths:   append([]string(nil), DefaultExcludedPaths...),
		MaxBodySize:     DefaultMaxBodySize,
		VisitedBackend:  DefaultVisitedBackend,
		Concurrency:     DefaultConcurrency,
		StoreBackend:    DefaultStoreBackend,
		DataDir:         XDGDataDir(),
		RedisAddr:       DefaultRedisAddr,
	}
}

// XDGDataDir is where the SQLite database lives by default
// (~/.local/share/portalaudit on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir is searched for config.yaml (~/.config/portalaudit on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate returns the first invalid setting found.
func (c *Config) Validate() error {
	switch {
	case c.Depth < 0:
		return ErrInvalidDepth
	case c.MaxPages < 0:
		return ErrInvalidMaxPages
	case c.Timeout <= 0:
		return ErrInvalidTimeout
	case c.RateLimit <= 0:
		return ErrInvalidRateLimit
	case c.Retries < 0:
		return ErrInvalidRetries
	case c.Concurrency <= 0:
		return ErrInvalidConcurrency
	case c.MaxBodySize <= 0:
		return ErrInvalidMaxBodySize
	case c.NamespaceMarker == "" || c.NamespaceMarker == "/":
		return ErrEmptyNamespaceMarker
	}

	switch c.VisitedBackend {
	case "memory", "bloom":
	default:
		return ErrUnknownVisitedBackend
	}

	switch c.StoreBackend {
	case "sqlite", "memory":
	case "redis":
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrUnknownStoreBackend
	}
	return nil
}
