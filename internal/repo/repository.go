package repo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/sitewatch/internal/domain"
)

var (
	// ErrBlobNotFound is returned by BlobStore.Get for a missing object.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrStorageUnavailable wraps any fetch/upload failure other than not-found.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrIntegrity marks a write that did not affect exactly one row.
	ErrIntegrity = errors.New("integrity error")
)

// Ports (interfaces): swap in any adapter.

// BlobStore holds whole objects addressed by key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
}

// StatusSession is one read-modify-write cycle over the durable container.
// Close must be called on every path; it persists whatever was written.
type StatusSession interface {
	ReadStatus(ctx context.Context) (domain.MonitorStatus, error)
	WriteStatus(ctx context.Context, status domain.Status, at time.Time) error
	AppendHistory(ctx context.Context, status domain.Status, at time.Time) error
	OpenFailure(ctx context.Context, failingURL string, at time.Time) error
	// ResolveFailure closes the most recent open failure event, if any.
	ResolveFailure(ctx context.Context, at time.Time) error
	History(ctx context.Context) ([]domain.StatusHistoryEntry, error)
	Close(ctx context.Context) error
}

// Snapshot is a read-only view of the durable container.
type Snapshot struct {
	Status   domain.MonitorStatus        `json:"status"`
	History  []domain.StatusHistoryEntry `json:"history"`
	Failures []domain.FailureEvent       `json:"failures,omitempty"`
}

type StatusStore interface {
	Open(ctx context.Context) (StatusSession, error)
	// Snapshot reads the container without writing it back.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// WithSession opens a session, runs fn and closes the session on every exit
// path, including panics. Errors from fn and Close are both returned.
//
// Sessions are not isolated from each other: two overlapping sessions on the
// same location lose the earlier writer's changes. Callers must ensure at most
// one session per location is in flight.
func WithSession(ctx context.Context, store StatusStore, fn func(StatusSession) error) (err error) {
	s, err := store.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close(ctx))
	}()
	return fn(s)
}
