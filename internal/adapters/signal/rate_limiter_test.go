package signal

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("A") || !rl.Allow("A") {
		t.Fatal("first two attempts refused")
	}
	if rl.Allow("A") {
		t.Fatal("third attempt inside window allowed")
	}
	if !rl.Allow("B") {
		t.Fatal("budget shared across identities")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("A") {
		t.Fatal("attempt after window refused")
	}
}

func TestRateLimiterForgetsIdleIdentities(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("A")
	rl.Allow("B")
	now = now.Add(2 * time.Minute)
	rl.Allow("C")

	if len(rl.history) != 1 {
		t.Fatalf("history keeps %d identities", len(rl.history))
	}
	if _, ok := rl.history["C"]; !ok {
		t.Fatal("active identity dropped")
	}
}
