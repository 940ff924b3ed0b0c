package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/probe"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/repo/memory"
	"github.com/hamed0406/sitewatch/internal/repo/sqlite"
	"github.com/hamed0406/sitewatch/internal/transition"
)

const target = "https://example.com"

type scriptedChecker struct {
	mu      sync.Mutex
	results []bool
	err     error
}

func (s *scriptedChecker) Check(context.Context, string) (probe.CheckResult, error) {
	if s.err != nil {
		return probe.CheckResult{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	up := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return probe.CheckResult{Success: up, LatencyMS: 3}, nil
}

func newHandler(chk probe.Checker, store repo.StatusStore) *Handler {
	eng := transition.NewEngine(store, nil, transition.Options{Target: target})
	return NewHandler(target, chk, eng, zap.NewNop(), nil)
}

func TestHandle_Messages(t *testing.T) {
	chk := &scriptedChecker{results: []bool{true, false, false, true}}
	h := newHandler(chk, sqlite.New(memory.New(), "k", 1, nil))
	ctx := context.Background()

	want := []struct {
		msg     string
		status  domain.Status
		changed bool
	}{
		{target + " is running!", domain.StatusUp, false},
		{target + " is down! Please contact administrators!", domain.StatusDown, true},
		{target + " is down! Please contact administrators!", domain.StatusDown, false},
		{target + " is back to normal! It is running again.", domain.StatusUp, true},
	}
	for i, w := range want {
		resp, err := h.Handle(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if resp.StatusCode != 200 || resp.Message != w.msg || resp.Status != w.status || resp.Changed != w.changed {
			t.Fatalf("run %d: got %+v", i, resp)
		}
		if _, err := uuid.Parse(resp.RunID); err != nil {
			t.Fatalf("run %d: run id %q is not a uuid", i, resp.RunID)
		}
	}
}

func TestHandle_InvalidTargetIsError(t *testing.T) {
	chk := &scriptedChecker{err: probe.ErrInvalidTarget}
	h := newHandler(chk, sqlite.New(memory.New(), "k", 1, nil))
	if _, err := h.Handle(context.Background()); !errors.Is(err, probe.ErrInvalidTarget) {
		t.Fatalf("want ErrInvalidTarget, got %v", err)
	}
}

type brokenBlob struct{}

func (brokenBlob) Get(context.Context, string) ([]byte, error) { return nil, errors.New("timeout") }
func (brokenBlob) Put(context.Context, string, []byte) error   { return nil }

func TestHandle_StorageFailureIsDistinctFromDown(t *testing.T) {
	chk := &scriptedChecker{results: []bool{false}}
	h := newHandler(chk, sqlite.New(brokenBlob{}, "k", 1, nil))
	resp, err := h.Handle(context.Background())
	if !errors.Is(err, repo.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
	if resp.StatusCode == 200 {
		t.Fatalf("an internal failure must not look like a successful evaluation")
	}
}

type slowEngine struct {
	inFlight int32
	overlap  int32
}

func (s *slowEngine) Evaluate(context.Context, domain.ProbeResult) (transition.Outcome, error) {
	if atomic.AddInt32(&s.inFlight, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&s.inFlight, -1)
	return transition.Outcome{Decision: domain.Decision{NewStatus: domain.StatusUp}}, nil
}

func TestHandle_SerializesInvocations(t *testing.T) {
	eng := &slowEngine{}
	h := NewHandler(target, &scriptedChecker{results: []bool{true}}, eng, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Handle(context.Background())
		}()
	}
	wg.Wait()
	if atomic.LoadInt32(&eng.overlap) != 0 {
		t.Fatalf("evaluations overlapped inside one process")
	}
}
