package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
)

const key = "monitor.sqlite3"

type flakyBlob struct {
	*memory.Store
	getErr error
	putErr error
}

func (f *flakyBlob) Get(ctx context.Context, k string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, k)
}

func (f *flakyBlob) Put(ctx context.Context, k string, b []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, k, b)
}

func newStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	blob := memory.New()
	return New(blob, key, 1, zap.NewNop()), blob
}

func TestOpen_MissingObjectInitializesUp(t *testing.T) {
	st, blob := newStore(t)
	ctx := context.Background()

	sess, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := sess.ReadStatus(ctx)
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.ID != 1 || got.Status != domain.StatusUp {
		t.Fatalf("fresh container should be id=1 UP, got %+v", got)
	}
	hist, err := sess.History(ctx)
	if err != nil || len(hist) != 0 {
		t.Fatalf("fresh container must have no history: %v %v", hist, err)
	}
	if err := sess.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if blob.Puts() != 1 {
		t.Fatalf("Close must upload once, got %d", blob.Puts())
	}
	if b, _ := blob.Get(ctx, key); len(b) == 0 {
		t.Fatalf("uploaded container is empty")
	}
}

func TestRoundTrip_StatusAndUpdatedAt(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	t1 := time.Date(2025, 8, 18, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(90 * time.Second)

	err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		return s.WriteStatus(ctx, domain.StatusDown, t1)
	})
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	var first domain.MonitorStatus
	err = repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		var err error
		first, err = s.ReadStatus(ctx)
		if err != nil {
			return err
		}
		return s.WriteStatus(ctx, first.Status, t2)
	})
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if first.Status != domain.StatusDown || !first.UpdatedAt.Equal(t1) {
		t.Fatalf("round trip lost data: %+v", first)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Status.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at must advance: %v -> %v", first.UpdatedAt, snap.Status.UpdatedAt)
	}
}

func TestHistory_AppendOnlyInOrder(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := []domain.Status{domain.StatusDown, domain.StatusUp, domain.StatusDown, domain.StatusUp, domain.StatusDown}

	for i, status := range seq {
		at := base.Add(time.Duration(i) * time.Minute)
		err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
			if err := s.WriteStatus(ctx, status, at); err != nil {
				return err
			}
			return s.AppendHistory(ctx, status, at)
		})
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.History) != len(seq) {
		t.Fatalf("want %d history rows, got %d", len(seq), len(snap.History))
	}
	for i, h := range snap.History {
		if h.NewStatus != seq[i] {
			t.Fatalf("row %d: want %s got %s", i, seq[i], h.NewStatus)
		}
		if !h.CreatedAt.Equal(base.Add(time.Duration(i) * time.Minute)) {
			t.Fatalf("row %d: created_at changed: %v", i, h.CreatedAt)
		}
	}
	if snap.Status.Status != domain.StatusDown {
		t.Fatalf("final status: %s", snap.Status.Status)
	}
}

func TestOpen_FetchFailureIsStorageUnavailable(t *testing.T) {
	blob := &flakyBlob{Store: memory.New(), getErr: errors.New("403 forbidden")}
	st := New(blob, key, 1, nil)
	_, err := st.Open(context.Background())
	if !errors.Is(err, repo.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestClose_UploadFailureIsFatal(t *testing.T) {
	blob := &flakyBlob{Store: memory.New(), putErr: errors.New("500 internal error")}
	st := New(blob, key, 1, nil)
	ctx := context.Background()

	sess, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dir := sess.(*session).dir
	if err := sess.WriteStatus(ctx, domain.StatusDown, time.Now()); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	err = sess.Close(ctx)
	if !errors.Is(err, repo.ErrStorageUnavailable) {
		t.Fatalf("upload failure must surface as ErrStorageUnavailable, got %v", err)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Fatalf("working dir must be removed after failed upload: %v", statErr)
	}
	if err := sess.Close(ctx); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestWriteStatus_MissingRowIsIntegrityError(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()

	sess, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close(ctx)

	db := sess.(*session).db
	if err := db.Delete(&MonitorStatus{}, 1).Error; err != nil {
		t.Fatalf("delete row: %v", err)
	}
	err = sess.WriteStatus(ctx, domain.StatusUp, time.Now())
	if !errors.Is(err, repo.ErrIntegrity) {
		t.Fatalf("want ErrIntegrity, got %v", err)
	}
}

func TestSnapshot_DoesNotUpload(t *testing.T) {
	st, blob := newStore(t)
	snap, err := st.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status.Status != domain.StatusUp {
		t.Fatalf("default snapshot status: %s", snap.Status.Status)
	}
	if blob.Puts() != 0 {
		t.Fatalf("Snapshot must not upload, got %d puts", blob.Puts())
	}
}

func TestFailureEvents_OpenAndResolve(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	down := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	up := down.Add(10 * time.Minute)

	if err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		return s.OpenFailure(ctx, "https://example.com", down)
	}); err != nil {
		t.Fatalf("open failure: %v", err)
	}
	if err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		return s.ResolveFailure(ctx, up)
	}); err != nil {
		t.Fatalf("resolve failure: %v", err)
	}
	// nothing open: resolving again is a no-op
	if err := repo.WithSession(ctx, st, func(s repo.StatusSession) error {
		return s.ResolveFailure(ctx, up.Add(time.Minute))
	}); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Failures) != 1 {
		t.Fatalf("want 1 failure event, got %d", len(snap.Failures))
	}
	ev := snap.Failures[0]
	if ev.FailingURL != "https://example.com" || ev.EventTime != down.Unix() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !ev.Resolved || ev.CompletionTime != up.Unix() {
		t.Fatalf("event should be resolved at %d: %+v", up.Unix(), ev)
	}
}

// Overlapping sessions are not isolated: the later Close overwrites the
// earlier one and its history row disappears.
func TestOverlappingSessions_LoseUpdate(t *testing.T) {
	st, _ := newStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	a, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	b, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}

	if err := a.WriteStatus(ctx, domain.StatusDown, now); err != nil {
		t.Fatalf("a write: %v", err)
	}
	if err := a.AppendHistory(ctx, domain.StatusDown, now); err != nil {
		t.Fatalf("a history: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("a close: %v", err)
	}

	// b read UP before a closed, so it sees no transition
	if err := b.WriteStatus(ctx, domain.StatusUp, now.Add(time.Second)); err != nil {
		t.Fatalf("b write: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("b close: %v", err)
	}

	snap, err := st.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status.Status != domain.StatusUp {
		t.Fatalf("last writer should win, got %s", snap.Status.Status)
	}
	if len(snap.History) != 0 {
		t.Fatalf("first writer's history should be lost, got %d rows", len(snap.History))
	}
}
