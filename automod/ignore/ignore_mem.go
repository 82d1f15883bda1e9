package ignore

import (
	"context"
	"sync"
	"time"
)

type MemRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
}

func NewMemRegistry(ttl time.Duration) *MemRegistry {
	return &MemRegistry{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

func (r *MemRegistry) Add(ctx context.Context, category, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entryKey(category, id)] = time.Now().Add(r.ttl)
	return nil
}

func (r *MemRegistry) CheckAndConsume(ctx context.Context, category, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entryKey(category, id)
	exp, ok := r.entries[key]
	if !ok {
		return false, nil
	}
	delete(r.entries, key)
	// expired entries are treated as absent even before the sweep reaps them
	if time.Now().After(exp) {
		return false, nil
	}
	return true, nil
}

// RunSweeper garbage-collects expired entries until ctx is cancelled.
func (r *MemRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *MemRegistry) sweep() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, k)
		}
	}
}
