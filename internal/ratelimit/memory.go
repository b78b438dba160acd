package ratelimit

import (
	"context"
	"sync"
	"time"
)

const gcThreshold = 1000

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is process local. Counters are not shared between instances;
// use RedisStore when more than one server runs.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: map[string]*memoryWindow{},
		now:     time.Now,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
		s.gcLocked(now)
	}
	w.count++

	return Window{Count: w.count, ResetAt: w.resetAt}, nil
}

func (s *MemoryStore) gcLocked(now time.Time) {
	if len(s.windows) < gcThreshold {
		return
	}

	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}
