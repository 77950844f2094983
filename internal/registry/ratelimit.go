package registry

import (
	"net/http"
	"sync"
	"time"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
)

// RateLimiter implements per-DID rate limiting using a token bucket
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a rate limiter allowing limit requests per period
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
	}
}

// Allow checks if a request is allowed for the given caller
func (rl *RateLimiter) Allow(callerID string) bool {
	bucket := rl.getBucket(callerID)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)

	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else {
		// Partial refill based on elapsed time
		tokensToAdd := int(elapsed.Nanoseconds() * int64(rl.limit) / rl.period.Nanoseconds())
		if tokensToAdd > 0 {
			bucket.tokens = min(bucket.tokens+tokensToAdd, rl.limit)
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// getBucket gets or creates the caller's token bucket
func (rl *RateLimiter) getBucket(callerID string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[callerID]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[callerID]; exists {
		return bucket
	}

	bucket = &tokenBucket{
		tokens:     rl.limit,
		lastRefill: time.Now(),
	}
	rl.buckets[callerID] = bucket

	return bucket
}

func (rl *RateLimiter) cleanup() {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)

	for callerID, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, callerID)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup starts periodic eviction of idle buckets
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.cleanup()
		}
	}()
}

// RateLimitMiddleware throttles authenticated callers by DID. Runs
// after AuthMiddleware so claims are always present.
func RateLimitMiddleware(limiter *RateLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			callerID := r.RemoteAddr
			if claims != nil && claims.DID != "" {
				callerID = claims.DID
			}

			if !limiter.Allow(callerID) {
				log.Security("rate_limit_exceeded", callerID, map[string]interface{}{
					"path": r.URL.Path,
				})
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
