package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lukemcguire/portalaudit/result"
)

// DefaultNamespaceMarker is the path segment that precedes a portal name.
const DefaultNamespaceMarker = "/portal/"

// DefaultExcludedPaths are sub-paths reserved for non-page content.
var DefaultExcludedPaths = []string{"/servicio/"}

// Scope decides which discovered links belong to the same portal namespace
// as the seed URL. It is computed once per crawl from the seed.
type Scope struct {
	seed      string   // normalized seed URL, used as a string prefix
	marker    string   // e.g. "/portal/"
	namespace string   // token following the marker in the seed path
	excluded  []string // sub-paths that are never followed
}

// NewScope derives the portal namespace from the seed URL.
// The namespace is the path segment immediately after marker; a seed without
// one is a configuration error and no crawl should be attempted.
func NewScope(seed, marker string, excluded []string) (*Scope, error) {
	if marker == "" {
		marker = DefaultNamespaceMarker
	}
	if !strings.HasPrefix(marker, "/") {
		marker = "/" + marker
	}
	if !strings.HasSuffix(marker, "/") {
		marker += "/"
	}

	normalized, err := Normalize(seed)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w: %v", seed, result.ErrConfiguration, err)
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w: %v", seed, result.ErrConfiguration, err)
	}

	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return nil, fmt.Errorf("seed %q has no %q segment: %w", seed, marker, result.ErrConfiguration)
	}
	namespace, _, _ := strings.Cut(parsed.Path[idx+len(marker):], "/")
	if namespace == "" {
		return nil, fmt.Errorf("seed %q has an empty portal name after %q: %w", seed, marker, result.ErrConfiguration)
	}

	return &Scope{
		seed:      normalized,
		marker:    marker,
		namespace: namespace,
		excluded:  append([]string(nil), excluded...),
	}, nil
}

// Seed returns the normalized seed URL.
func (s *Scope) Seed() string { return s.seed }

// Namespace returns the portal name derived from the seed.
func (s *Scope) Namespace() string { return s.namespace }

// Allows reports whether a normalized candidate URL may be crawled:
// it must lie under the seed's portal segment and the seed prefix, avoid
// every excluded sub-path, and carry no fragment.
func (s *Scope) Allows(candidate string) bool {
	if !strings.Contains(candidate, s.marker+s.namespace+"/") {
		return false
	}
	for _, ex := range s.excluded {
		if ex != "" && strings.Contains(candidate, ex) {
			return false
		}
	}
	if !strings.HasPrefix(candidate, s.seed) {
		return false
	}
	return !strings.Contains(candidate, "#")
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}
