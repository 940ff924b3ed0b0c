package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidTarget marks a configuration error: the target can never be probed.
var ErrInvalidTarget = errors.New("invalid probe target")

// CheckResult is the unified result of a single probe.
//
// Fields:
//   - StatusCode: final HTTP status code; 0 for transport/DNS errors.
//   - Message: status line or the last transport error.
type CheckResult struct {
	Success    bool
	LatencyMS  float64
	Message    string
	StatusCode int
}

// Checker performs a single check for a given target URL. Unreachable
// targets are reported through CheckResult; the error is reserved for
// targets that are malformed.
type Checker interface {
	Check(ctx context.Context, target string) (CheckResult, error)
}

// ValidateTarget accepts absolute http and https URLs with a host.
func ValidateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, raw)
	}
	return nil
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
