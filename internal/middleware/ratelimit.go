package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"eventgraph/internal/config"
)

// RateLimitMiddleware enforces one global token bucket across all requests.
// Rejected requests get 429 with a Retry-After hint.
func RateLimitMiddleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfterSeconds(cfg.RPS))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"errors":[{"message":"rate limit exceeded","extensions":{"code":"RATE_LIMITED"}}]}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds is the time for one token to refill, rounded up to a whole second.
func retryAfterSeconds(rps float64) string {
	refill := time.Duration(float64(time.Second) / rps)
	secs := int(math.Ceil(refill.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
