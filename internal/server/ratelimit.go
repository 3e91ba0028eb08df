package server

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/albertopd/secureprompt/internal/requestctx"
)

// RateLimiter enforces per-corp and global request rate limits using token
// buckets via golang.org/x/time/rate.
type RateLimiter struct {
	mu      sync.Mutex
	global  *rate.Limiter
	corps   map[string]*rate.Limiter
	perCorp rate.Limit
	burst   int
}

// NewRateLimiter creates a rate limiter. globalRPM is the total
// requests/minute across all corps, perCorpRPM the per-corp budget.
func NewRateLimiter(globalRPM, perCorpRPM int) *RateLimiter {
	globalRate := rate.Limit(float64(globalRPM) / 60.0)
	corpRate := rate.Limit(float64(perCorpRPM) / 60.0)
	globalBurst := globalRPM
	if globalBurst < 1 {
		globalBurst = 1
	}
	corpBurst := perCorpRPM
	if corpBurst < 1 {
		corpBurst = 1
	}
	return &RateLimiter{
		global:  rate.NewLimiter(globalRate, globalBurst),
		corps:   make(map[string]*rate.Limiter),
		perCorp: corpRate,
		burst:   corpBurst,
	}
}

// Allow checks whether a request from the given corp is allowed.
func (rl *RateLimiter) Allow(corpKey string) bool {
	if !rl.global.Allow() {
		return false
	}
	rl.mu.Lock()
	limiter, ok := rl.corps[corpKey]
	if !ok {
		limiter = rate.NewLimiter(rl.perCorp, rl.burst)
		rl.corps[corpKey] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}

// RateLimitMiddleware returns 429 with Retry-After when the caller's corp
// exceeds its budget. A nil limiter disables limiting.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := requestctx.PrincipalFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if !rl.Allow(p.CorpKey) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "request rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
