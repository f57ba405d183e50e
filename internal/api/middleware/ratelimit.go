package middleware

import (
	"encoding/json"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per client IP.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	b, ok := p.buckets[key]
	if !ok {
		b = rate.NewLimiter(p.limit, p.burst)
		p.buckets[key] = b
	}
	// Bound memory under IP churn. Buckets reset on eviction, which only
	// grants evicted clients a fresh burst.
	if len(p.buckets) > 10000 {
		p.buckets = map[string]*rate.Limiter{key: b}
	}
	p.mu.Unlock()
	return b.Allow()
}

// RateLimit limits requests per client IP with a token bucket.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	pool := newLimiterPool(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// RealIP runs earlier in the chain and rewrites RemoteAddr,
			// but keep the header fallback for direct handler tests.
			ip := r.Header.Get("X-Real-IP")
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !pool.allow(ip) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
