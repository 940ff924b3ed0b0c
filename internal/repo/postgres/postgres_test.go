package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := New(ctx, dsn, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(st.Close)

	if _, err := st.pool.Exec(ctx,
		`TRUNCATE monitor_status, status_history, failure_events RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return st
}

func TestPostgresStore_FreshIsUp(t *testing.T) {
	st := newTestStore(t)
	snap, err := st.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status.Status != domain.StatusUp || len(snap.History) != 0 {
		t.Fatalf("fresh database should be UP with no history: %+v", snap)
	}
}

func TestPostgresStore_TransitionsAndFailureEvents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	t1 := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		cur, err := s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		if cur.Status != domain.StatusUp {
			t.Errorf("initial status: %s", cur.Status)
		}
		if err := s.WriteStatus(ctx, domain.StatusDown, t1); err != nil {
			return err
		}
		if err := s.AppendHistory(ctx, domain.StatusDown, t1); err != nil {
			return err
		}
		return s.OpenFailure(ctx, "https://example.com", t1)
	})
	if err != nil {
		t.Fatalf("down cycle: %v", err)
	}

	err = repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		if err := s.WriteStatus(ctx, domain.StatusUp, t2); err != nil {
			return err
		}
		if err := s.AppendHistory(ctx, domain.StatusUp, t2); err != nil {
			return err
		}
		return s.ResolveFailure(ctx, t2)
	})
	if err != nil {
		t.Fatalf("up cycle: %v", err)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status.Status != domain.StatusUp || !snap.Status.UpdatedAt.Equal(t2) {
		t.Fatalf("status: %+v", snap.Status)
	}
	if len(snap.History) != 2 || snap.History[0].NewStatus != domain.StatusDown || snap.History[1].NewStatus != domain.StatusUp {
		t.Fatalf("history: %+v", snap.History)
	}
	if len(snap.Failures) != 1 || !snap.Failures[0].Resolved || snap.Failures[0].CompletionTime != t2.Unix() {
		t.Fatalf("failures: %+v", snap.Failures)
	}
}
