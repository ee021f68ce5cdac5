package httpadapter

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterSweepEvery  = time.Minute
	maxTrackedLimiters = 10000
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// tenantLimiters hands out one token bucket per tenant, falling back to the
// client address for requests without a tenant header. Idle buckets are
// evicted; once maxEntries keys are tracked, new keys share one bucket.
type tenantLimiters struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	overflow  *rate.Limiter
	lastSweep time.Time

	rps        rate.Limit
	burst      int
	idleTTL    time.Duration
	maxEntries int
	now        func() time.Time
}

func newTenantLimiters(rps float64, burst int) *tenantLimiters {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	// An evicted bucket must already have refilled, or eviction would hand
	// out tokens early.
	refill := time.Duration(float64(burst) / rps * float64(time.Second))
	return &tenantLimiters{
		entries:    make(map[string]*limiterEntry),
		overflow:   rate.NewLimiter(rate.Limit(rps), burst),
		lastSweep:  time.Now(),
		rps:        rate.Limit(rps),
		burst:      burst,
		idleTTL:    max(limiterIdleTTL, refill),
		maxEntries: maxTrackedLimiters,
		now:        time.Now,
	}
}

func (l *tenantLimiters) get(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	if now.Sub(l.lastSweep) >= limiterSweepEvery || len(l.entries) >= l.maxEntries {
		l.sweep(now)
	}
	if len(l.entries) >= l.maxEntries {
		return l.overflow
	}

	entry := &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.entries[key] = entry
	return entry.limiter
}

func (l *tenantLimiters) sweep(now time.Time) {
	l.lastSweep = now
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.entries, key)
		}
	}
}

func (rt *Router) rateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	limiters := newTenantLimiters(rps, burst)
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(rt.cfg.TenantHeader)
			if key == "" {
				key = clientAddr(r)
			}
			if !limiters.get(key).Allow() {
				rt.recordRejection("rate_limited")
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// backpressureMiddleware admits at most maxInFlight requests, waiting up to
// wait for a slot before shedding with 503.
func (rt *Router) backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	slots := make(chan struct{}, maxInFlight)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acquireSlot(r, slots, wait) {
			rt.recordRejection("overloaded")
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "server is overloaded, retry later"})
			return
		}
		defer func() { <-slots }()
		next.ServeHTTP(w, r)
	})
}

func acquireSlot(r *http.Request, slots chan struct{}, wait time.Duration) bool {
	select {
	case slots <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-r.Context().Done():
		return false
	}
}

func (rt *Router) recordRejection(reason string) {
	if rt.httpMetrics != nil {
		rt.httpMetrics.RecordRejection(rt.cfg.ServiceName, reason)
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
