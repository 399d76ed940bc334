package crawler

import (
	"log/slog"
	"time"

	"github.com/lukemcguire/portalaudit/urlutil"
)

// DefaultMaxDepth is the traversal depth used when Crawl is given a negative
// depth.
const DefaultMaxDepth = 2

const defaultUserAgent = "portalaudit/1.0 (+https://github.com/lukemcguire/portalaudit)"

// Config holds crawler configuration.
type Config struct {
	MaxPages        int           // stop after this many analyzed pages; 0 means unlimited
	RequestTimeout  time.Duration // per-request HTTP timeout
	RateLimit       float64       // requests per second
	AdaptiveRate    bool          // let observed latency move the rate
	UserAgent       string
	RetryPolicy     RetryPolicy
	RespectRobots   bool
	NamespaceMarker string   // path segment preceding the portal name
	ExcludedPaths   []string // sub-paths never followed
	MaxBodySize     int64    // bytes read per page
	VisitedBackend  string   // "memory" or "bloom"
	Logger          *slog.Logger
}

// DefaultConfig returns the configuration used by the CLI when no file or
// flag overrides a field.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  10 * time.Second,
		RateLimit:       5,
		UserAgent:       defaultUserAgent,
		RetryPolicy:     DefaultRetryPolicy(),
		RespectRobots:   true,
		NamespaceMarker: urlutil.DefaultNamespaceMarker,
		ExcludedPaths:   append([]string(nil), urlutil.DefaultExcludedPaths...),
		MaxBodySize:     5 << 20,
		VisitedBackend:  BackendMemory,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig. ExcludedPaths is
// only defaulted when nil so callers can pass an empty slice to exclude
// nothing.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RetryPolicy == (RetryPolicy{}) {
		cfg.RetryPolicy = def.RetryPolicy
	}
	if cfg.NamespaceMarker == "" {
		cfg.NamespaceMarker = def.NamespaceMarker
	}
	if cfg.ExcludedPaths == nil {
		cfg.ExcludedPaths = def.ExcludedPaths
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	if cfg.VisitedBackend == "" {
		cfg.VisitedBackend = def.VisitedBackend
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}
