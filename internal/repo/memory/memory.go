package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/sitewatch/internal/repo"
)

// Store is an in-process BlobStore. Bodies are copied in and out so callers
// can never alias stored bytes.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	puts    int
}

func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func (m *Store) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, repo.ErrBlobNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Store) Put(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.puts++
	return nil
}

// Puts reports how many uploads the store has accepted.
func (m *Store) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
