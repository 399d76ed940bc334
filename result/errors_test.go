package result

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       ErrorCategory
	}{
		{
			name:       "4xx status",
			err:        nil,
			statusCode: 404,
			want:       Category4xx,
		},
		{
			name:       "5xx status",
			err:        nil,
			statusCode: 500,
			want:       Category5xx,
		},
		{
			name:       "timeout error",
			err:        context.DeadlineExceeded,
			statusCode: 0,
			want:       CategoryTimeout,
		},
		{
			name:       "wrapped timeout error",
			err:        fmt.Errorf("get page: %w", context.DeadlineExceeded),
			statusCode: 0,
			want:       CategoryTimeout,
		},
		{
			name:       "robots disallowed",
			err:        fmt.Errorf("fetch: %w", ErrRobotsDisallowed),
			statusCode: 0,
			want:       CategoryRobotsDisallowed,
		},
		{
			name:       "redirect loop",
			err:        errors.New(`Get "https://example.com/a": stopped after 10 redirects`),
			statusCode: 0,
			want:       CategoryRedirectLoop,
		},
		{
			name:       "no error no status",
			err:        nil,
			statusCode: 0,
			want:       CategoryUnknown,
		},
		{
			name:       "3xx status is unknown",
			err:        nil,
			statusCode: 301,
			want:       CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err, tt.statusCode)
			if got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError_DNSFailure(t *testing.T) {
	dnsErr := &net.DNSError{
		Err:  "no such host",
		Name: "example.invalid",
	}

	got := ClassifyError(dnsErr, 0)
	if got != CategoryDNSFailure {
		t.Errorf("ClassifyError(DNSError) = %v, want %v", got, CategoryDNSFailure)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"configuration", fmt.Errorf("seed: %w", ErrConfiguration), "configuration"},
		{"fetch", fmt.Errorf("page: %w", ErrFetch), "fetch"},
		{"audit", fmt.Errorf("page: %w", ErrAudit), "audit"},
		{"url parse", fmt.Errorf("normalize: %w", ErrURLParse), "url_parse"},
		{"unrelated", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCategory(t *testing.T) {
	tests := []struct {
		cat  ErrorCategory
		want string
	}{
		{CategoryTimeout, "Timeouts"},
		{CategoryDNSFailure, "DNS Failures"},
		{CategoryConnectionRefused, "Connection Refused"},
		{Category4xx, "Client Errors (4xx)"},
		{Category5xx, "Server Errors (5xx)"},
		{CategoryRedirectLoop, "Redirect Loops"},
		{CategoryRobotsDisallowed, "Blocked by robots.txt"},
		{CategoryUnknown, "Other Errors"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			got := FormatCategory(tt.cat)
			if got != tt.want {
				t.Errorf("FormatCategory(%v) = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}
