package notify

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Name() string
	Send(ctx context.Context, title, text string) error
}

// Multi sends to every channel and returns the combined errors.
// Observe, when set, sees the outcome of each channel.
type Multi struct {
	Notifiers []Notifier
	Observe   func(channel string, err error)
	Log       *zap.Logger
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Send(ctx context.Context, title, text string) error {
	var errs error
	for _, n := range m.Notifiers {
		if n == nil {
			continue
		}
		err := n.Send(ctx, title, text)
		if m.Observe != nil {
			m.Observe(n.Name(), err)
		}
		if err != nil {
			if m.Log != nil {
				m.Log.Warn("notify_failed", zap.String("channel", n.Name()), zap.Error(err))
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errs
}

// Len reports the number of configured channels.
func (m *Multi) Len() int { return len(m.Notifiers) }
