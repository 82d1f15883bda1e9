// Package spam tracks sliding-window behavioral state per (guild, user) and
// signals when a user's recent messages cross the guild's thresholds. It only
// signals; consequences belong to the caller.
package spam

import (
	"context"
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spaolacci/murmur3"
)

const (
	ReasonMessageRate      = "message_rate"
	ReasonDuplicateContent = "duplicate_content"
	ReasonMassMentions     = "mass_mentions"

	// entries kept per user beyond window eviction, to bound memory
	maxWindowEntries = 50
	// minimum sample before the duplicate-ratio threshold can fire
	minDuplicateSample = 3
)

// Policy is the per-guild threshold set evaluated against a user's window.
type Policy struct {
	Window            time.Duration
	MaxMessages       int
	MaxDuplicateRatio float64
	MaxMentions       int
}

type entry struct {
	at          time.Time
	fingerprint uint64
	mentions    int
}

type userWindow struct {
	mu       sync.Mutex
	limiter  *slidingwindow.Limiter
	stop     slidingwindow.StopFunc
	policy   Policy
	entries  []entry
	lastSeen time.Time
}

// Checker is safe for concurrent use across users; evaluations for the same
// user are serialized by the per-window mutex.
type Checker struct {
	windows *xsync.MapOf[string, *userWindow]
}

func NewChecker() *Checker {
	return &Checker{
		windows: xsync.NewMapOf[string, *userWindow](),
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func windowKey(guildID, userID string) string {
	return guildID + "/" + userID
}

// RecordAndEvaluate appends one message to the user's window, evicts stale
// entries, and reports whether any threshold is now violated, with a reason
// code. A single message is never double-counted: callers get one verdict per
// call, in arrival order for a given user.
func (c *Checker) RecordAndEvaluate(guildID, userID, content string, mentions int, pol Policy) (bool, string) {
	w, _ := c.windows.LoadOrCompute(windowKey(guildID, userID), func() *userWindow {
		return newUserWindow(pol)
	})
	w.mu.Lock()
	defer w.mu.Unlock()

	// guild thresholds can change between messages; rebuild the rate window
	// when they do
	if w.policy != pol {
		w.stop()
		fresh := newUserWindow(pol)
		w.limiter, w.stop, w.policy = fresh.limiter, fresh.stop, pol
	}

	now := time.Now()
	w.lastSeen = now
	overRate := !w.limiter.Allow()

	w.entries = append(w.entries, entry{
		at:          now,
		fingerprint: murmur3.Sum64([]byte(content)),
		mentions:    mentions,
	})
	w.evict(now, pol.Window)

	if overRate {
		return true, ReasonMessageRate
	}
	if pol.MaxDuplicateRatio > 0 && len(w.entries) >= minDuplicateSample {
		if w.duplicateRatio() >= pol.MaxDuplicateRatio {
			return true, ReasonDuplicateContent
		}
	}
	if pol.MaxMentions > 0 {
		total := 0
		for _, e := range w.entries {
			total += e.mentions
		}
		if total > pol.MaxMentions {
			return true, ReasonMassMentions
		}
	}
	return false, ""
}

// Forget drops all tracked state for a user, eg after a remediation cycle
// completes.
func (c *Checker) Forget(guildID, userID string) {
	if w, ok := c.windows.LoadAndDelete(windowKey(guildID, userID)); ok {
		w.mu.Lock()
		w.stop()
		w.mu.Unlock()
	}
}

// RunSweeper evicts windows idle longer than `idle` until ctx is cancelled.
func (c *Checker) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idle)
			c.windows.Range(func(key string, w *userWindow) bool {
				w.mu.Lock()
				stale := w.lastSeen.Before(cutoff)
				w.mu.Unlock()
				if stale {
					if old, ok := c.windows.LoadAndDelete(key); ok {
						old.stop()
					}
				}
				return true
			})
		}
	}
}

func newUserWindow(pol Policy) *userWindow {
	lim, stop := slidingwindow.NewLimiter(pol.Window, int64(pol.MaxMessages), windowFunc)
	return &userWindow{limiter: lim, stop: stop, policy: pol}
}

func (w *userWindow) evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.entries) && w.entries[i].at.Before(cutoff) {
		i++
	}
	w.entries = w.entries[i:]
	if len(w.entries) > maxWindowEntries {
		w.entries = w.entries[len(w.entries)-maxWindowEntries:]
	}
}

func (w *userWindow) duplicateRatio() float64 {
	counts := make(map[uint64]int, len(w.entries))
	top := 0
	for _, e := range w.entries {
		counts[e.fingerprint]++
		if counts[e.fingerprint] > top {
			top = counts[e.fingerprint]
		}
	}
	return float64(top) / float64(len(w.entries))
}
