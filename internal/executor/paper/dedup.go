package paper

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultDedupWindow    = 5 * time.Minute
	DefaultDedupRetention = 10 * time.Minute
)

// Dedup suppresses repeated order attempts. Seen reports whether key was
// recorded less than the window ago; otherwise it records key at now.
type Dedup interface {
	Seen(ctx context.Context, key string, now time.Time) (bool, error)
}

// MemoryDedup keeps keys in process. Entries at or past the retention age are
// pruned on every call.
type MemoryDedup struct {
	mu        sync.Mutex
	window    time.Duration
	retention time.Duration
	seen      map[string]time.Time
}

func NewMemoryDedup(window, retention time.Duration) *MemoryDedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if retention < window {
		retention = max(window, DefaultDedupRetention)
	}
	return &MemoryDedup{window: window, retention: retention, seen: make(map[string]time.Time)}
}

func (d *MemoryDedup) Seen(_ context.Context, key string, now time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return true, nil
	}
	d.seen[key] = now
	for k, t := range d.seen {
		if now.Sub(t) >= d.retention {
			delete(d.seen, k)
		}
	}
	return false, nil
}

// Len reports how many keys are retained.
func (d *MemoryDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
