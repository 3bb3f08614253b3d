package commands

import (
	"fmt"
	"testing"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
)

func TestThrottle_Allow(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	th := NewThrottle(10*time.Second, clk)

	if ok, _ := th.Allow("u1"); !ok {
		t.Fatal("first call should be allowed")
	}
	ok, wait := th.Allow("u1")
	if ok {
		t.Fatal("second call should be throttled")
	}
	if wait != 10*time.Second {
		t.Errorf("wait = %s, want 10s", wait)
	}
	if ok, _ := th.Allow("u2"); !ok {
		t.Error("other users are not affected")
	}

	clk.Advance(4 * time.Second)
	if _, wait := th.Allow("u1"); wait != 6*time.Second {
		t.Errorf("wait = %s, want 6s", wait)
	}

	clk.Advance(6 * time.Second)
	if ok, _ := th.Allow("u1"); !ok {
		t.Error("call after the window should be allowed")
	}
}

func TestThrottle_Disabled(t *testing.T) {
	th := NewThrottle(0, clock.Real{})
	for range 3 {
		if ok, _ := th.Allow("u1"); !ok {
			t.Fatal("disabled throttle must allow every call")
		}
	}
}

func TestThrottle_PrunesIdleUsers(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	th := NewThrottle(time.Second, clk)
	for i := range maxIdleLimiters {
		th.Allow(fmt.Sprintf("u%d", i))
	}
	clk.Advance(time.Second)
	th.Allow("late")

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.limiters) != 1 {
		t.Errorf("limiters = %d, want 1 after pruning", len(th.limiters))
	}
}
