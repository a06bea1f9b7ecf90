package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/docqa-ai/docqa/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests/second allowed per client IP
	// when the config carries no explicit limit.
	defaultRateLimit = 10
	// defaultRateBurst allows short spikes above the sustained rate.
	defaultRateBurst = 20
	// visitorTTL is how long an idle client keeps its token bucket before the
	// janitor reclaims it.
	visitorTTL = 5 * time.Minute
)

// visitor pairs a client's token bucket with its last-seen time so idle
// entries can be reclaimed.
type visitor struct {
	bucket *rate.Limiter
	seen   time.Time
}

// rateLimiter enforces a per-IP token-bucket limit on the API endpoints.
// A janitor goroutine sweeps idle visitors once a minute so the map stays
// bounded even under address churn.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	rps   rate.Limit
	burst int
	log   *slog.Logger
}

// newRateLimiter builds a rateLimiter and starts its janitor. Calling the
// returned stop function terminates the janitor goroutine.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	stop := make(chan struct{})
	go rl.janitor(stop)

	return rl, func() { close(stop) }
}

// bucketFor returns the token bucket for ip, creating it on first sight and
// refreshing the last-seen stamp either way.
func (rl *rateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	return v.bucket
}

// janitor sweeps idle visitors once a minute until stop is closed.
func (rl *rateLimiter) janitor(stop <-chan struct{}) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			rl.sweep()
		}
	}
}

// sweep drops visitors not seen within visitorTTL.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	deadline := time.Now().Add(-visitorTTL)
	swept := 0
	for ip, v := range rl.visitors {
		if v.seen.Before(deadline) {
			delete(rl.visitors, ip)
			swept++
		}
	}
	if swept > 0 {
		rl.log.Debug("rate limiter swept idle clients", slog.Int("count", swept))
	}
}

// middleware wraps next with the rate check. Over-limit requests get
// 429 Too Many Requests plus a Retry-After hint.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.bucketFor(ip).Allow() {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, scanning from the right so IPv6
// bracket notation survives intact. X-Forwarded-For is deliberately ignored;
// nothing fronts this server.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
