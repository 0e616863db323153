package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
)

// RateLimiterConfig configures a per-client token bucket.
type RateLimiterConfig struct {
	// RequestsPerSecond is the refill rate.
	RequestsPerSecond float64
	// BurstSize is the bucket capacity.
	BurstSize int
	// CleanupInterval is how often idle buckets are dropped.
	CleanupInterval time.Duration
	// KeyFunc picks the bucket; the client address by default.
	KeyFunc func(r *http.Request) string
}

// DefaultRateLimiterConfig suits the admin API: a few operators, each
// issuing bursts of commands against one order.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		KeyFunc:           clientKey,
	}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter keeps one bucket per key in memory. Limits are per process.
type RateLimiter struct {
	cfg     RateLimiterConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientKey
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	rl := &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// take spends one token for key. When the bucket is empty it returns how
// long until the next token.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.cfg.BurstSize)
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, lastSeen: now}
		rl.buckets[key] = b
	}
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.cfg.RequestsPerSecond)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.cfg.RequestsPerSecond <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / rl.cfg.RequestsPerSecond * float64(time.Second))
}

// Allow reports whether a request for key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.take(key)
	return ok
}

// sweep drops buckets idle for a whole interval; they would be full again.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.cfg.CleanupInterval)
			for key, b := range rl.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware answers 429 with a Retry-After in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.take(rl.cfg.KeyFunc(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			refuse(w, r, domain.ERATELIMIT, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
