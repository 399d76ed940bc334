package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrInvalidDepth          = errors.New("invalid depth: must be non-negative")
	ErrInvalidMaxPages       = errors.New("invalid max pages: must be non-negative")
	ErrInvalidTimeout        = errors.New("invalid timeout: must be positive")
	ErrInvalidRateLimit      = errors.New("invalid rate limit: must be positive")
	ErrInvalidRetries        = errors.New("invalid retries: must be non-negative")
	ErrInvalidConcurrency    = errors.New("invalid concurrency: must be positive")
	ErrInvalidMaxBodySize    = errors.New("invalid max body size: must be positive")
	ErrEmptyNamespaceMarker  = errors.New("namespace marker must not be empty")
	ErrUnknownStoreBackend   = errors.New("unknown store backend: use sqlite, redis or memory")
	ErrUnknownVisitedBackend = errors.New("unknown visited backend: use memory or bloom")
	ErrMissingRedisAddr      = errors.New("redis store needs an address")
)
