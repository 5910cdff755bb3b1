package ntpd

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// ipLimiter is a per-source-IP token bucket. A zero rate disables it.
type ipLimiter struct {
	mu    sync.Mutex
	perIP map[string]*bucket

	rate  float64
	burst float64
}

func newIPLimiter(ratePerSec float64, burst int) *ipLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		perIP: make(map[string]*bucket),
		rate:  ratePerSec,
		burst: float64(burst),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	if l.rate <= 0 || ip == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.perIP[ip]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		l.perIP[ip] = b
	}

	dt := now.Sub(b.last).Seconds()
	if dt < 0 {
		dt = 0
	}
	b.last = now
	b.tokens += dt * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
