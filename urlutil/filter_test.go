package urlutil

import (
	"errors"
	"testing"

	"github.com/lukemcguire/portalaudit/result"
)

func TestNewScope(t *testing.T) {
	tests := []struct {
		name      string
		seed      string
		marker    string
		namespace string
		wantErr   bool
	}{
		{
			name:      "portal name after marker",
			seed:      "https://example.org/sede/portal/etopia",
			marker:    "/portal/",
			namespace: "etopia",
		},
		{
			name:      "nested path keeps first segment",
			seed:      "https://example.org/sede/portal/etopia/agenda/2026",
			marker:    "/portal/",
			namespace: "etopia",
		},
		{
			name:      "query does not leak into namespace",
			seed:      "https://example.org/sede/portal/etopia?lang=es",
			marker:    "/portal/",
			namespace: "etopia",
		},
		{
			name:      "marker without slashes is completed",
			seed:      "https://example.org/site/web/cultura/",
			marker:    "web",
			namespace: "cultura",
		},
		{
			name:      "empty marker uses default",
			seed:      "https://example.org/sede/portal/movilidad",
			marker:    "",
			namespace: "movilidad",
		},
		{
			name:    "missing marker",
			seed:    "https://example.org/sede/servicio/tramite",
			marker:  "/portal/",
			wantErr: true,
		},
		{
			name:    "empty portal name",
			seed:    "https://example.org/sede/portal/",
			marker:  "/portal/",
			wantErr: true,
		},
		{
			name:    "relative seed",
			seed:    "/sede/portal/etopia",
			marker:  "/portal/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := NewScope(tt.seed, tt.marker, DefaultExcludedPaths)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewScope(%q) expected error", tt.seed)
				}
				if !errors.Is(err, result.ErrConfiguration) {
					t.Errorf("NewScope() error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewScope() error = %v", err)
			}
			if scope.Namespace() != tt.namespace {
				t.Errorf("Namespace() = %q, want %q", scope.Namespace(), tt.namespace)
			}
		})
	}
}

func TestScopeAllows(t *testing.T) {
	scope, err := NewScope("https://example.org/sede/portal/etopia", DefaultNamespaceMarker, DefaultExcludedPaths)
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}

	tests := []struct {
		name      string
		candidate string
		expected  bool
	}{
		{
			name:      "page under the portal",
			candidate: "https://example.org/sede/portal/etopia/about",
			expected:  true,
		},
		{
			name:      "excluded service sub-path",
			candidate: "https://example.org/sede/portal/etopia/servicio/x",
			expected:  false,
		},
		{
			name:      "different portal",
			candidate: "https://example.org/sede/portal/otro/page",
			expected:  false,
		},
		{
			name:      "fragment link",
			candidate: "https://example.org/sede/portal/etopia/about#team",
			expected:  false,
		},
		{
			name:      "portal segment but outside seed prefix",
			candidate: "https://other.example.org/sede/portal/etopia/about",
			expected:  false,
		},
		{
			name:      "portal name as prefix of a longer name",
			candidate: "https://example.org/sede/portal/etopia-extra/page",
			expected:  false,
		},
		{
			name:      "seed itself without trailing slash",
			candidate: "https://example.org/sede/portal/etopia",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scope.Allows(tt.candidate)
			if got != tt.expected {
				t.Errorf("Allows(%q) = %v, want %v", tt.candidate, got, tt.expected)
			}
		})
	}
}

func TestScopeCustomExclusions(t *testing.T) {
	scope, err := NewScope("https://example.org/sede/portal/etopia/", "/portal/", []string{"/servicio/", "/documento/"})
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}

	if scope.Allows("https://example.org/sede/portal/etopia/documento/42") {
		t.Error("expected custom excluded sub-path to be rejected")
	}
	if !scope.Allows("https://example.org/sede/portal/etopia/agenda") {
		t.Error("expected agenda page to be allowed")
	}
	if scope.Seed() != "https://example.org/sede/portal/etopia/" {
		t.Errorf("Seed() = %q", scope.Seed())
	}
}

func TestIsHTTPScheme(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "https scheme",
			input:    "https://example.com",
			expected: true,
		},
		{
			name:     "http scheme",
			input:    "http://example.com",
			expected: true,
		},
		{
			name:     "mailto scheme",
			input:    "mailto:user@example.com",
			expected: false,
		},
		{
			name:     "javascript scheme",
			input:    "javascript:void(0)",
			expected: false,
		},
		{
			name:     "empty string",
			input:    "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsHTTPScheme(tt.input)
			if got != tt.expected {
				t.Errorf("IsHTTPScheme(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
