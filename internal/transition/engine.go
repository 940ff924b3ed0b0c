package transition

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/logging"
	"github.com/hamed0406/sitewatch/internal/metrics"
	"github.com/hamed0406/sitewatch/internal/notify"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// FailureEventMode controls the legacy failure-event record.
type FailureEventMode string

const (
	FailureEventsOff         FailureEventMode = "off"
	FailureEventsOpen        FailureEventMode = "open"
	FailureEventsOpenResolve FailureEventMode = "open_resolve"
)

type Sender interface {
	Send(ctx context.Context, title, text string) error
}

type Options struct {
	Target        string
	Mention       string
	FailureEvents FailureEventMode
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// Engine runs one read-decide-write cycle against a StatusStore.
type Engine struct {
	store    repo.StatusStore
	notifier Sender
	opts     Options
	log      *zap.Logger
}

func NewEngine(store repo.StatusStore, notifier Sender, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FailureEvents == "" {
		opts.FailureEvents = FailureEventsOff
	}
	return &Engine{store: store, notifier: notifier, opts: opts, log: opts.Logger}
}

// Outcome describes a completed cycle. NotifyErr is set when the alert
// could not be delivered; the persisted state stands regardless.
type Outcome struct {
	Previous    domain.Status
	Decision    domain.Decision
	EvaluatedAt time.Time
	Notified    bool
	NotifyErr   error
}

// Evaluate persists the decision for probe and then, only once the state
// has been stored, sends the alert the decision asks for.
func (e *Engine) Evaluate(ctx context.Context, probe domain.ProbeResult) (Outcome, error) {
	now := e.opts.Now().UTC()
	out := Outcome{EvaluatedAt: now}
	log := logging.From(ctx, e.log)

	err := repo.WithSession(ctx, e.store, func(s repo.StatusSession) error {
		cur, err := s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		out.Previous = cur.Status
		out.Decision = Decide(cur.Status, probe)

		if err := s.WriteStatus(ctx, out.Decision.NewStatus, now); err != nil {
			return err
		}
		if !out.Decision.HistoryNeeded {
			return nil
		}
		if err := s.AppendHistory(ctx, out.Decision.NewStatus, now); err != nil {
			return err
		}
		return e.recordFailureEvent(ctx, s, out.Decision, now)
	})
	if err != nil {
		e.opts.Metrics.ObserveCycle("", err)
		return out, fmt.Errorf("evaluate: %w", err)
	}
	e.opts.Metrics.ObserveCycle(out.Decision.NewStatus, nil)

	fields := []zap.Field{
		zap.String("previous", string(out.Previous)),
		zap.String("status", string(out.Decision.NewStatus)),
		zap.String("probe", probe.String()),
		zap.String("alert", out.Decision.Alert.String()),
	}
	if out.Decision.Changed() {
		e.opts.Metrics.ObserveTransition(out.Decision.NewStatus)
		log.Info("status_changed", fields...)
	} else {
		log.Debug("cycle_evaluated", fields...)
	}

	title, text, ok := e.message(out.Decision.Alert, now)
	if !ok || e.notifier == nil {
		return out, nil
	}
	out.NotifyErr = e.notifier.Send(ctx, title, text)
	out.Notified = out.NotifyErr == nil
	if out.NotifyErr != nil {
		log.Warn("alert_not_delivered", zap.String("alert", out.Decision.Alert.String()), zap.Error(out.NotifyErr))
	}
	return out, nil
}

func (e *Engine) recordFailureEvent(ctx context.Context, s repo.StatusSession, d domain.Decision, at time.Time) error {
	switch {
	case e.opts.FailureEvents == FailureEventsOff:
		return nil
	case d.NewStatus == domain.StatusDown:
		return s.OpenFailure(ctx, e.opts.Target, at)
	case e.opts.FailureEvents == FailureEventsOpenResolve:
		return s.ResolveFailure(ctx, at)
	}
	return nil
}

func (e *Engine) message(a domain.Alert, at time.Time) (title, text string, ok bool) {
	switch a {
	case domain.AlertDown:
		return notify.TitleDown, notify.DownMessage(e.opts.Target, at, e.opts.Mention), true
	case domain.AlertRecovered:
		return notify.TitleRecovered, notify.RecoveryMessage(e.opts.Target, at), true
	}
	return "", "", false
}
