package radpress

import (
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, max int) (*LoginLimiter, *time.Time) {
	t.Helper()
	l := NewLoginLimiter(max, time.Hour)
	t.Cleanup(l.Stop)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	l, _ := newTestLimiter(t, 2)
	ip := "203.0.113.10"

	for i := 0; i < 2; i++ {
		if !l.Check(ip) {
			t.Fatalf("attempt %d: expected to be allowed", i+1)
		}
		l.Record(ip)
	}
	if l.Check(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	l, now := newTestLimiter(t, 1)
	ip := "203.0.113.20"

	l.Record(ip)
	if l.Check(ip) {
		t.Fatalf("expected attempt inside window to be blocked")
	}
	*now = now.Add(time.Hour + time.Second)
	if !l.Check(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	l, _ := newTestLimiter(t, 1)

	l.Record("203.0.113.30")
	if !l.Check("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if l.Check("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestLoginLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ip := "203.0.113.40"

	l.Record(ip)
	l.Reset(ip)
	if !l.Check(ip) {
		t.Fatalf("expected reset ip to be allowed")
	}
}

func TestLoginLimiterStopTwice(t *testing.T) {
	l := NewLoginLimiter(1, time.Millisecond)
	l.Stop()
	l.Stop()
}
