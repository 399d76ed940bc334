package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working and home directories.
const DefaultConfigFile = ".portalaudit"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML configuration file. Unset fields leave the defaults
// untouched.
//
//	crawl:
//	  depth: 3
//	  timeout: 15s
//	  rate_limit: 2
//	  excluded_paths: ["/servicio/", "/buscador/"]
//	store:
//	  backend: sqlite
//	  data_dir: /var/lib/portalaudit
type File struct {
	Crawl CrawlSection `yaml:"crawl"`
	Store StoreSection `yaml:"store"`
}

// CrawlSection configures fetching and traversal.
type CrawlSection struct {
	Depth           *int           `yaml:"depth"`
	MaxPages        *int           `yaml:"max_pages"`
	Timeout         *time.Duration `yaml:"timeout"`
	RateLimit       *float64       `yaml:"rate_limit"`
	AdaptiveRate    *bool          `yaml:"adaptive_rate"`
	Retries         *int           `yaml:"retries"`
	UserAgent       string         `yaml:"user_agent"`
	RespectRobots   *bool          `yaml:"respect_robots"`
	NamespaceMarker string         `yaml:"namespace_marker"`
	ExcludedPaths   []string       `yaml:"excluded_paths"`
	MaxBodySize     *int64         `yaml:"max_body_size"`
	VisitedBackend  string         `yaml:"visited_backend"`
	Concurrency     *int           `yaml:"concurrency"`
}

// StoreSection selects where results are persisted.
type StoreSection struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// LoadConfigFile reads a YAML config file. A missing file yields
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-chosen config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns the first existing config file among configPath,
// ./.portalaudit, the XDG config directory's config.yaml and ~/.portalaudit.
// An explicit configPath is never substituted: if it does not exist the
// result is "".
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Apply overlays the settings present in f onto c.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	cs := f.Crawl
	setIf(&c.Depth, cs.Depth)
	setIf(&c.MaxPages, cs.MaxPages)
	setIf(&c.Timeout, cs.Timeout)
	setIf(&c.RateLimit, cs.RateLimit)
	setIf(&c.AdaptiveRate, cs.AdaptiveRate)
	setIf(&c.Retries, cs.Retries)
	setIf(&c.RespectRobots, cs.RespectRobots)
	setIf(&c.MaxBodySize, cs.MaxBodySize)
	setIf(&c.Concurrency, cs.Concurrency)
	setString(&c.UserAgent, cs.UserAgent)
	setString(&c.NamespaceMarker, cs.NamespaceMarker)
	setString(&c.VisitedBackend, cs.VisitedBackend)
	if cs.ExcludedPaths != nil {
		c.ExcludedPaths = append([]string(nil), cs.ExcludedPaths...)
	}

	ss := f.Store
	setString(&c.StoreBackend, ss.Backend)
	setString(&c.DataDir, ss.DataDir)
	setString(&c.RedisAddr, ss.RedisAddr)
	setString(&c.RedisPrefix, ss.RedisPrefix)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
