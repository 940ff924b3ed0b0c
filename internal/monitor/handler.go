// Package monitor runs one full evaluation: probe the target, persist the
// transition and report the outcome.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/transition"
)

// Evaluator is the part of transition.Engine the handler needs.
type Evaluator interface {
	Evaluate(ctx context.Context, probe domain.ProbeResult) (transition.Outcome, error)
}

// Response reports a successful evaluation. A DOWN target is still a
// successful evaluation; failures of the monitor itself come back as errors.
type Response struct {
	StatusCode int           `json:"-"`
	Message    string        `json:"message"`
	Status     domain.Status `json:"status"`
	Previous   domain.Status `json:"previous"`
	Changed    bool          `json:"changed"`
	Notified   bool          `json:"notified"`
	LatencyMS  float64       `json:"latency_ms"`
	RunID      string        `json:"run_id"`
}

// Handler serializes evaluations within the process. Two processes sharing
// one state location must still be kept from overlapping by the caller.
type Handler struct {
	target  string
	checker probe.Checker
	engine  Evaluator
	log     *zap.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

func NewHandler(target string, checker probe.Checker, engine Evaluator, log *zap.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{target: target, checker: checker, engine: engine, log: log, metrics: m}
}

func (h *Handler) Target() string { return h.target }

func (h *Handler) Handle(ctx context.Context) (Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	runID := uuid.NewString()
	log := h.log.With(zap.String("run_id", runID), zap.String("target", h.target))
	ctx = logging.Into(ctx, log)

	res, err := h.checker.Check(ctx, h.target)
	if err != nil {
		log.Error("probe_rejected", zap.Error(err))
		h.metrics.ObserveCycle("", err)
		return Response{RunID: runID}, fmt.Errorf("probe %s: %w", h.target, err)
	}
	h.metrics.ObserveProbe(res.LatencyMS)
	log.Info("probe_done",
		zap.Bool("success", res.Success),
		zap.Int("status_code", res.StatusCode),
		zap.Float64("latency_ms", res.LatencyMS),
		zap.String("message", res.Message),
	)

	out, err := h.engine.Evaluate(ctx, domain.ProbeResultOf(res.Success))
	if err != nil {
		log.Error("cycle_failed", zap.Error(err))
		return Response{RunID: runID}, err
	}

	resp := Response{
		StatusCode: http.StatusOK,
		Message:    h.message(out.Decision),
		Status:     out.Decision.NewStatus,
		Previous:   out.Previous,
		Changed:    out.Decision.Changed(),
		Notified:   out.Notified,
		LatencyMS:  res.LatencyMS,
		RunID:      runID,
	}
	log.Info("cycle_done",
		zap.String("status", string(resp.Status)),
		zap.Bool("changed", resp.Changed),
		zap.Bool("notified", resp.Notified),
	)
	return resp, nil
}

func (h *Handler) message(d domain.Decision) string {
	switch {
	case d.NewStatus == domain.StatusDown:
		return h.target + " is down! Please contact administrators!"
	case d.Alert == domain.AlertRecovered:
		return h.target + " is back to normal! It is running again."
	default:
		return h.target + " is running!"
	}
}
