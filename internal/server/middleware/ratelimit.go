package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits each client IP to requestsPerMinute using a sliding
// window. Rejected requests get the standard JSON error envelope. A limit
// of zero or less disables limiting.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded, retry later")
		}),
	)
}

// RateLimitBySubject limits authenticated callers by token subject so a
// single dashboard user cannot starve others behind one proxy address.
// Anonymous requests fall back to the client IP.
func RateLimitBySubject(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p := GetPrincipal(r.Context()); p != nil && p.Subject != "" {
				return "sub:" + p.Subject, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded, retry later")
		}),
	)
}
