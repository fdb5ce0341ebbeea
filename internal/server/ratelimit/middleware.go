package ratelimit

import (
	"net/http"
	"strconv"
)

// WriteHeaders writes rate limit headers to the response.
func WriteHeaders(w http.ResponseWriter, r Result) {
	if r.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	// Retry-After only on 429 responses
	if !r.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(r.RetryAfter.Seconds())))
	}
}

// Middleware throttles requests by the key returned by keyOf. Rejected
// requests are answered by reject after the headers are written.
func Middleware(l *Limiter, keyOf func(*http.Request) string, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Allow(keyOf(r))
			WriteHeaders(w, res)
			if !res.Allowed {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
