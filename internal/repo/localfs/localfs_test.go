package localfs

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hamed0406/sitewatch/internal/repo"
)

func TestLocalFS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Get(ctx, "state/monitor.db"); !errors.Is(err, repo.ErrBlobNotFound) {
		t.Fatalf("want ErrBlobNotFound, got %v", err)
	}
	if err := s.Put(ctx, "state/monitor.db", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "state/monitor.db", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := s.Get(ctx, "state/monitor.db")
	if err != nil || string(got) != "v2" {
		t.Fatalf("Get: %q %v", got, err)
	}

	entries, _ := os.ReadDir(s.Dir + "/state")
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestLocalFS_RejectsEscapingKeys(t *testing.T) {
	s, _ := New(t.TempDir())
	for _, key := range []string{"../x", "/etc/passwd", "."} {
		if err := s.Put(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}
