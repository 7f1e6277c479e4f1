package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiterEntries bounds the per-client map. On overflow the map is
// reset wholesale; at worst active clients get one fresh burst.
const maxLimiterEntries = 10000

// ipLimiter applies a per-client token bucket to the submit endpoint.
type ipLimiter struct {
	mu    sync.Mutex
	lims  map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &ipLimiter{lims: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.lims[ip]
	if !ok {
		if len(l.lims) >= maxLimiterEntries {
			l.lims = map[string]*rate.Limiter{}
		}
		lim = rate.NewLimiter(l.rps, l.burst)
		l.lims[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
