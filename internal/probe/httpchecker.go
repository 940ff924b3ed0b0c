package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 5
	maxDrainBytes   = 64 << 10
	userAgent       = "sitewatch/1.0 (+uptime probe)"
)

type HTTPOptions struct {
	Timeout        time.Duration // per attempt
	Attempts       int           // total attempts, first one included
	Backoff        time.Duration // waits are 0, b, 2b, 4b, ...
	Logger         *zap.Logger
	DNSDiagnostics bool // classify DNS for failed probes (log only)
}

// HTTPChecker issues GET requests and retries on 500/502/503/504 and
// connection-level failures.
type HTTPChecker struct {
	client   *retryablehttp.Client
	log      *zap.Logger
	diagnose bool
}

func NewHTTPChecker(opts HTTPOptions) *HTTPChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts < 1 {
		opts.Attempts = defaultAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := retryablehttp.NewClient()
	c.HTTPClient = &http.Client{Timeout: opts.Timeout}
	c.RetryMax = opts.Attempts - 1
	c.CheckRetry = retryPolicy
	c.Backoff = exponentialBackoff(opts.Backoff)
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = retryLogger{opts.Logger.Sugar()}

	return &HTTPChecker{client: c, log: opts.Logger, diagnose: opts.DNSDiagnostics}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) (CheckResult, error) {
	if err := ValidateTarget(target); err != nil {
		return CheckResult{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil || resp == nil {
		out := CheckResult{Success: false, LatencyMS: latency, Message: "http_error"}
		if err != nil {
			out.Message = err.Error()
		}
		h.diagnoseFailure(ctx, target)
		return out, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	out := CheckResult{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
		Message:    resp.Status,
	}
	if !out.Success {
		h.diagnoseFailure(ctx, target)
	}
	return out, nil
}

func (h *HTTPChecker) diagnoseFailure(ctx context.Context, target string) {
	if !h.diagnose {
		return
	}
	dns := CheckDNS(ctx, extractHost(target))
	h.log.Info("probe_dns_diagnostic", dns.Fields()...)
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// connection-level failures retry; TLS/scheme/redirect errors do not
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func exponentialBackoff(factor time.Duration) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		if factor <= 0 || attemptNum == 0 {
			return 0
		}
		return factor << (attemptNum - 1)
	}
}

// retryLogger routes retryablehttp's leveled logging into zap.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
