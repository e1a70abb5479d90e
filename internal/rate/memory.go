package rate

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryLimiter is an in-process fixed-window limiter with the same
// semantics as [Limiter]. Counts are not shared between processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	config  Config
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemory creates a [MemoryLimiter].
func NewMemory(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  cfg.withDefaults(),
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Allow counts one attempt for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	start, reset := windowBounds(l.now(), l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		if len(l.windows) > 4096 {
			l.sweep(start)
		}
		w = &memoryWindow{start: start}
		l.windows[key] = w
	}
	w.count++

	return decide(w.count, l.config.Limit, reset), nil
}

func (l *MemoryLimiter) sweep(current time.Time) {
	for k, w := range l.windows {
		if w.start.Before(current) {
			delete(l.windows, k)
		}
	}
}
