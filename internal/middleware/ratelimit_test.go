package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 5, nil)
	if l != nil {
		t.Fatal("expected nil limiter for non-positive rate")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("caller") {
			t.Fatal("nil limiter must allow everything")
		}
	}
}

func TestRateLimiter_PerKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(1, 2, nil)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if l.Allow("a") {
		t.Error("third request within a second should be rejected")
	}
	if !l.Allow("b") {
		t.Error("other keys have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Error("token should refill after one second")
	}
}

func TestRateLimiter_EvictsIdleEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewRateLimiter(1000, 1000, nil)
	l.now = func() time.Time { return now }

	l.Allow("idle")
	now = now.Add(2 * defaultIdleTTL)
	for i := 0; i < evictEvery; i++ {
		l.Allow("busy")
	}

	l.mu.Lock()
	_, ok := l.byKey["idle"]
	l.mu.Unlock()
	if ok {
		t.Error("idle entry should have been evicted")
	}
}
