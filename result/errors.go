package result

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error kinds raised by the crawl pipeline. Wrap them with fmt.Errorf("...: %w")
// so callers can test with errors.Is.
var (
	// ErrURLParse marks a URL that could not be normalized. Non-fatal.
	ErrURLParse = errors.New("url parse error")
	// ErrFetch marks a network or HTTP failure. Non-fatal per crawl node.
	ErrFetch = errors.New("fetch error")
	// ErrConfiguration marks a seed URL outside any portal namespace. Fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrAudit marks a sanitizer or auditor failure. Non-fatal per crawl node.
	ErrAudit = errors.New("audit error")
)

// Kind names the error kind of err, or "" when it matches none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrAudit):
		return "audit"
	case errors.Is(err, ErrURLParse):
		return "url_parse"
	default:
		return ""
	}
}

// ErrorCategory represents the classification of a fetch failure.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryRobotsDisallowed  ErrorCategory = "robots_disallowed"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ErrRobotsDisallowed is returned when robots.txt forbids fetching a page.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// ClassifyError determines the category of a fetch failure from the error
// and the HTTP status code (0 when no response was received).
func ClassifyError(err error, statusCode int) ErrorCategory {
	if statusCode >= 400 && statusCode <= 499 {
		return Category4xx
	}
	if statusCode >= 500 {
		return Category5xx
	}

	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, ErrRobotsDisallowed) {
		return CategoryRobotsDisallowed
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNSFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
			return CategoryConnectionRefused
		}
		if opErr.Timeout() {
			return CategoryTimeout
		}
	}

	// net/http reports redirect loops as a plain error from CheckRedirect.
	if strings.Contains(err.Error(), "stopped after") && strings.Contains(err.Error(), "redirects") {
		return CategoryRedirectLoop
	}

	return CategoryUnknown
}

// FormatCategory returns a human-readable label for an error category.
func FormatCategory(cat ErrorCategory) string {
	switch cat {
	case CategoryTimeout:
		return "Timeouts"
	case CategoryDNSFailure:
		return "DNS Failures"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case Category4xx:
		return "Client Errors (4xx)"
	case Category5xx:
		return "Server Errors (5xx)"
	case CategoryRedirectLoop:
		return "Redirect Loops"
	case CategoryRobotsDisallowed:
		return "Blocked by robots.txt"
	default:
		return "Other Errors"
	}
}
