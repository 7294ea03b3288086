package api

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	app_errors "flow-stream/backend/internal/errors"
	"flow-stream/backend/internal/metrics"
)

// limiterPool keeps one token bucket per user.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	if l, ok := p.m[key]; ok {
		return l
	}
	rps := p.rps
	if rps <= 0 {
		rps = 2
	}
	burst := p.burst
	if burst <= 0 {
		burst = 5
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.m[key] = l
	return l
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit limits requests per user id. Only new submissions go through it;
// resume and stop must always be reachable.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiters := &limiterPool{rps: rps, burst: burst}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := userID(r)
			if !limiters.Allow(user) {
				metrics.RateLimited.Inc()
				respondWithError(w, fmt.Errorf("%w: user %s", app_errors.ErrRateLimited, user))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
