package radpress

import (
	"sync"
	"time"
)

// LoginLimiter counts failed admin logins per client IP inside a sliding
// window. A background goroutine drops idle clients until Stop is called.
type LoginLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewLoginLimiter returns a limiter that blocks a client after max failures
// within window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Stop ends the background sweeper. It is safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *LoginLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip := range l.hits {
				l.prune(ip)
			}
			l.mu.Unlock()
		}
	}
}

// prune drops expired failures of ip and returns how many remain.
// l.mu must be held.
func (l *LoginLimiter) prune(ip string) int {
	cutoff := l.now().Add(-l.window)
	kept := l.hits[ip][:0]
	for _, t := range l.hits[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.hits, ip)
		return 0
	}
	l.hits[ip] = kept
	return len(kept)
}

// Check reports whether ip may try to log in. It records nothing.
func (l *LoginLimiter) Check(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(ip) < l.max
}

// Record registers a failed login of ip.
func (l *LoginLimiter) Record(ip string) {
	l.mu.Lock()
	l.hits[ip] = append(l.hits[ip], l.now())
	l.mu.Unlock()
}

// Reset forgets every failure of ip, e.g. after a successful login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.hits, ip)
	l.mu.Unlock()
}
