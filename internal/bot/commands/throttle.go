package commands

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
)

// maxIdleLimiters bounds how many per-user limiters are kept before idle
// ones are pruned.
const maxIdleLimiters = 1024

// Throttle spaces out one command per user.
type Throttle struct {
	every time.Duration
	clk   clock.Clock

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle allows each user one call per every. A non-positive every
// disables throttling.
func NewThrottle(every time.Duration, clk clock.Clock) *Throttle {
	return &Throttle{every: every, clk: clk, limiters: make(map[string]*rate.Limiter)}
}

// Allow consumes the user's slot. When the slot is taken it returns false and
// how long the user must wait.
func (t *Throttle) Allow(userID string) (bool, time.Duration) {
	if t == nil || t.every <= 0 {
		return true, 0
	}
	now := t.clk.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[userID]
	if !ok {
		if len(t.limiters) >= maxIdleLimiters {
			t.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(t.every), 1)
		t.limiters[userID] = lim
	}

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (t *Throttle) prune(now time.Time) {
	for id, lim := range t.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(t.limiters, id)
		}
	}
}
