package crawler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/lukemcguire/portalaudit/result"
)

// RetryPolicy configures retries of transient fetch failures.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // first backoff, doubled per retry
	MaxDelay   time.Duration // backoff cap
}

// DefaultRetryPolicy allows 2 retries starting at 1s, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// withRetry calls attempt until it succeeds, fails permanently, or the
// policy is exhausted. The last error is returned with its attempt count.
func withRetry(ctx context.Context, policy RetryPolicy, attempt func(context.Context) (string, error)) (string, error) {
	backoff := policy.BaseDelay
	var lastErr error

	for i := 0; i <= policy.MaxRetries; i++ {
		if i > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", lastErr
			case <-timer.C:
			}
			backoff = min(backoff*2, policy.MaxDelay)
		}

		body, err := attempt(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Attempts = i + 1
		}
		if !shouldRetry(ctx, err) {
			break
		}
	}
	return "", lastErr
}

// shouldRetry reports whether a failed fetch is worth repeating: rate
// limiting, server errors and transient network failures are; client errors,
// robots.txt refusals and caller cancellation are not.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}

	switch {
	case fe.Category == result.CategoryRobotsDisallowed:
		return false
	case fe.StatusCode == http.StatusTooManyRequests:
		return true
	case fe.StatusCode >= 500:
		return true
	case fe.StatusCode >= 400:
		return false
	}
	return isTransient(fe.Err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
