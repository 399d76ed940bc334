// Package urlutil canonicalizes page URLs and decides which links belong to a
// portal namespace.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lukemcguire/portalaudit/result"
)

// Normalize returns the canonical identity of a page URL:
// - Stripping the query string (?a=b)
// - Lowercasing the scheme and host
// - Using "/" for an empty path
// - Preserving the fragment
//
// On failure the input is returned unchanged together with an error wrapping
// result.ErrURLParse, so callers can log it and keep the original string.
func Normalize(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, fmt.Errorf("normalize URL %q: %w: %v", rawURL, result.ErrURLParse, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return rawURL, fmt.Errorf("normalize URL %q: %w: URL must have both scheme and host", rawURL, result.ErrURLParse)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	parsed.RawQuery = ""
	parsed.ForceQuery = false

	if parsed.Path == "" && parsed.Opaque == "" {
		parsed.Path = "/"
		parsed.RawPath = ""
	}

	return parsed.String(), nil
}
