package middleware

import (
	"net/http"
	"sync/atomic"
)

// Counters tracks request and error totals for the /metrics endpoint.
type Counters struct {
	requests *atomic.Int64
	errors   *atomic.Int64
}

func NewCounters(requests, errors *atomic.Int64) *Counters {
	return &Counters{requests: requests, errors: errors}
}

// Middleware counts every request and every 4xx/5xx response.
func (c *Counters) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if rw.statusCode >= http.StatusBadRequest {
			c.errors.Add(1)
		}
	})
}
