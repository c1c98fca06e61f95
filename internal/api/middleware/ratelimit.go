package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter tracks request timestamps per key over a sliding window.
type RateLimiter struct {
	requests      int
	window        time.Duration
	buckets       map[string]*bucket
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
}

type bucket struct {
	timestamps []time.Time
	mu         sync.Mutex
}

func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	rl := &RateLimiter{
		requests: requests,
		window:   time.Duration(windowSeconds) * time.Second,
		buckets:  make(map[string]*bucket),
	}

	rl.cleanupTicker = time.NewTicker(time.Minute)
	go rl.cleanup()

	return rl
}

// cleanup drops buckets with no activity in the last two windows.
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			b.mu.Lock()
			if len(b.timestamps) == 0 || now.Sub(b.timestamps[len(b.timestamps)-1]) > rl.window*2 {
				delete(rl.buckets, key)
			}
			b.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// Allow reports whether a request under the given key fits in the window,
// along with the remaining budget and when the window resets.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if b, exists = rl.buckets[key]; !exists {
			b = &bucket{timestamps: make([]time.Time, 0, rl.requests)}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	kept := b.timestamps[:0]
	for _, ts := range b.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	b.timestamps = kept

	remaining := rl.requests - len(b.timestamps)
	if remaining < 0 {
		remaining = 0
	}

	if len(b.timestamps) >= rl.requests {
		resetTime := b.timestamps[0].Add(rl.window)
		return false, remaining, resetTime
	}

	b.timestamps = append(b.timestamps, now)
	return true, remaining - 1, now.Add(rl.window)
}

func (rl *RateLimiter) limit(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetTime := rl.Allow(keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(resetTime).Seconds())+1, 10))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per client IP. Applied to the public surface,
// where no identity is available yet.
func RateLimit(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).limit(getClientIP)
}

// RateLimitByOrg limits requests per organization, so one busy tenant
// cannot starve the others. Must run after Auth; requests without an
// organization in context fall back to the client IP.
func RateLimitByOrg(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).limit(func(r *http.Request) string {
		if orgID := GetOrganizationID(r.Context()); orgID != uuid.Nil {
			return "org:" + orgID.String()
		}
		return getClientIP(r)
	})
}

// getClientIP extracts the client IP, preferring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == ':' {
			return ip[:i]
		}
	}
	return ip
}
