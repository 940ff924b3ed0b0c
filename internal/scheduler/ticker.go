package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/monitor"
)

// Runner is one evaluation cycle.
type Runner interface {
	Handle(ctx context.Context) (monitor.Response, error)
}

// Ticker triggers a cycle on a fixed cadence. Cycles run one after the
// other on a single goroutine, so a slow cycle delays the next one instead
// of overlapping it.
type Ticker struct {
	Logger   *zap.Logger
	Runner   Runner
	Interval time.Duration
	Timeout  time.Duration
}

func NewTicker(logger *zap.Logger, runner Runner, interval, timeout time.Duration) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Ticker{Logger: logger, Runner: runner, Interval: interval, Timeout: timeout}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	if t.Interval == 0 {
		t.Logger.Info("scheduler_disabled")
		return
	}
	tk := time.NewTicker(t.Interval)
	defer tk.Stop()

	t.Logger.Info("scheduler_started", zap.Duration("interval", t.Interval))
	t.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			t.Logger.Info("scheduler_stopped")
			return
		case <-tk.C:
			t.runOnce(ctx)
		}
	}
}

func (t *Ticker) runOnce(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	resp, err := t.Runner.Handle(cctx)
	if err != nil {
		t.Logger.Warn("scheduler_cycle_error", zap.String("run_id", resp.RunID), zap.Error(err))
		return
	}
	t.Logger.Debug("scheduler_cycle",
		zap.String("run_id", resp.RunID),
		zap.String("status", string(resp.Status)),
		zap.Bool("changed", resp.Changed),
	)
}
