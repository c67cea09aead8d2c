package signal

import (
	"sync"
	"time"

	"github.com/dkeye/convo/internal/domain"
)

// RateLimiter is a sliding-window budget per identity.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.Identity][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	sweepAt  time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.Identity][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(name domain.Identity) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[name]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	rl.sweep(now, windowStart)

	if len(fresh) >= rl.limit {
		rl.history[name] = fresh
		return false
	}

	rl.history[name] = append(fresh, now)
	return true
}

// sweep drops identities with no attempt inside the window, at most
// once per interval.
func (rl *RateLimiter) sweep(now, windowStart time.Time) {
	if now.Before(rl.sweepAt) {
		return
	}
	rl.sweepAt = now.Add(rl.interval)
	for name, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, name)
		}
	}
}
