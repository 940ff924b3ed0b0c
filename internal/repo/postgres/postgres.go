// Package postgres is a StatusStore that keeps the monitor state directly
// in Postgres. A session is one transaction; Close commits it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

var _ repo.StatusStore = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS monitor_status (
  id         BIGINT PRIMARY KEY,
  status     VARCHAR(8) NOT NULL DEFAULT 'UP',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS status_history (
  id         BIGSERIAL PRIMARY KEY,
  new_status VARCHAR(8) NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS failure_events (
  id              BIGSERIAL PRIMARY KEY,
  event_time      BIGINT NOT NULL,
  failing_url     TEXT NOT NULL,
  completion_time BIGINT NULL,
  resolved        BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_status_history_created_at ON status_history (created_at);
`

type Store struct {
	pool      *pgxpool.Pool
	monitorID uint
	log       *zap.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string, monitorID uint, log *zap.Logger) (*Store, error) {
	if monitorID == 0 {
		monitorID = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", repo.ErrStorageUnavailable, err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, monitorID: monitorID, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Open(ctx context.Context) (repo.StatusSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", repo.ErrStorageUnavailable, err)
	}
	sess := &session{store: s, tx: tx}
	if err := sess.ensureRow(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return sess, nil
}

// Snapshot reads inside a transaction that is always rolled back.
func (s *Store) Snapshot(ctx context.Context) (*repo.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", repo.ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	sess := &session{store: s, tx: tx, readOnly: true}
	st, err := sess.ReadStatus(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := sess.History(ctx)
	if err != nil {
		return nil, err
	}
	fails, err := sess.failures(ctx)
	if err != nil {
		return nil, err
	}
	return &repo.Snapshot{Status: st, History: hist, Failures: fails}, nil
}

type session struct {
	store    *Store
	tx       pgx.Tx
	readOnly bool
	closed   bool
}

func (s *session) ensureRow(ctx context.Context) error {
	_, err := s.tx.Exec(ctx,
		`INSERT INTO monitor_status (id, status, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		int64(s.store.monitorID), string(domain.DefaultStatus), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: ensure status row: %w", repo.ErrIntegrity, err)
	}
	return nil
}

// ReadStatus locks the status row until the session ends, so overlapping
// sessions on the same database wait for each other.
func (s *session) ReadStatus(ctx context.Context) (domain.MonitorStatus, error) {
	q := `SELECT id, status, updated_at FROM monitor_status WHERE id = $1`
	if !s.readOnly {
		q += ` FOR UPDATE`
	}
	var (
		id        int64
		status    string
		updatedAt time.Time
	)
	err := s.tx.QueryRow(ctx, q, int64(s.store.monitorID)).Scan(&id, &status, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// read-only snapshot of a database that was never written
		return domain.MonitorStatus{ID: s.store.monitorID, Status: domain.DefaultStatus}, nil
	}
	if err != nil {
		return domain.MonitorStatus{}, fmt.Errorf("read status: %w", err)
	}
	return domain.MonitorStatus{ID: uint(id), Status: domain.Status(status), UpdatedAt: updatedAt.UTC()}, nil
}

func (s *session) WriteStatus(ctx context.Context, status domain.Status, at time.Time) error {
	tag, err := s.tx.Exec(ctx,
		`UPDATE monitor_status SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at.UTC(), int64(s.store.monitorID))
	if err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if n := tag.RowsAffected(); n != 1 {
		return fmt.Errorf("%w: status update affected %d rows", repo.ErrIntegrity, n)
	}
	return nil
}

func (s *session) AppendHistory(ctx context.Context, status domain.Status, at time.Time) error {
	tag, err := s.tx.Exec(ctx,
		`INSERT INTO status_history (new_status, created_at) VALUES ($1, $2)`,
		string(status), at.UTC())
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if n := tag.RowsAffected(); n != 1 {
		return fmt.Errorf("%w: history insert affected %d rows", repo.ErrIntegrity, n)
	}
	return nil
}

func (s *session) OpenFailure(ctx context.Context, failingURL string, at time.Time) error {
	tag, err := s.tx.Exec(ctx,
		`INSERT INTO failure_events (event_time, failing_url) VALUES ($1, $2)`,
		at.Unix(), failingURL)
	if err != nil {
		return fmt.Errorf("open failure event: %w", err)
	}
	if n := tag.RowsAffected(); n != 1 {
		return fmt.Errorf("%w: failure event insert affected %d rows", repo.ErrIntegrity, n)
	}
	return nil
}

func (s *session) ResolveFailure(ctx context.Context, at time.Time) error {
	tag, err := s.tx.Exec(ctx, `
UPDATE failure_events
   SET completion_time = $1, resolved = true
 WHERE id = (SELECT id FROM failure_events WHERE NOT resolved ORDER BY id DESC LIMIT 1)`,
		at.Unix())
	if err != nil {
		return fmt.Errorf("resolve failure event: %w", err)
	}
	if n := tag.RowsAffected(); n > 1 {
		return fmt.Errorf("%w: failure event update affected %d rows", repo.ErrIntegrity, n)
	}
	return nil
}

func (s *session) History(ctx context.Context) ([]domain.StatusHistoryEntry, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, new_status, created_at FROM status_history ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := []domain.StatusHistoryEntry{}
	for rows.Next() {
		var (
			id        int64
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, domain.StatusHistoryEntry{ID: uint(id), NewStatus: domain.Status(status), CreatedAt: createdAt.UTC()})
	}
	return out, rows.Err()
}

func (s *session) failures(ctx context.Context) ([]domain.FailureEvent, error) {
	rows, err := s.tx.Query(ctx,
		`SELECT id, event_time, failing_url, completion_time, resolved FROM failure_events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list failure events: %w", err)
	}
	defer rows.Close()

	var out []domain.FailureEvent
	for rows.Next() {
		var (
			ev        domain.FailureEvent
			id        int64
			completed null.Int
		)
		if err := rows.Scan(&id, &ev.EventTime, &ev.FailingURL, &completed, &ev.Resolved); err != nil {
			return nil, fmt.Errorf("scan failure event: %w", err)
		}
		ev.ID = uint(id)
		ev.CompletionTime = completed.Int64
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close commits everything written in the session.
func (s *session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.tx.Commit(ctx); err != nil {
		s.store.log.Error("state_commit_failed", zap.Error(err))
		return fmt.Errorf("%w: commit: %w", repo.ErrStorageUnavailable, err)
	}
	return nil
}
