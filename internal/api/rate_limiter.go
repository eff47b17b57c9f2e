package api

import (
	"net/http"
	"sync"

	"github.com/finance-ledger/internal/types"
	"golang.org/x/time/rate"
)

// RateLimiter manages rate limiting for API requests
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	// Rate limits per tier (requests per second)
	freeTierLimit rate.Limit
	paidTierLimit rate.Limit

	// Burst size (number of requests that can be made in a burst)
	burstSize int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(freeTierRPS, paidTierRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		freeTierLimit: rate.Limit(freeTierRPS),
		paidTierLimit: rate.Limit(paidTierRPS),
		burstSize:     10,
	}
}

// getLimiter returns the rate limiter for a specific user and tier
func (rl *RateLimiter) getLimiter(userID string, tier types.UserTier) *rate.Limiter {
	key := userID

	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	var limit rate.Limit
	switch tier {
	case types.TierPaid:
		limit = rl.paidTierLimit
	default:
		limit = rl.freeTierLimit
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, rl.burstSize)
	rl.limiters[key] = limiter

	return limiter
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				// No user ID, fall back to the caller's address
				userID = r.RemoteAddr
			}

			tier := types.UserTier(r.Header.Get("X-User-Tier"))
			if tier == "" {
				tier = types.TierFree
			}

			limiter := rl.getLimiter(userID, tier)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"tier":  tier,
					"limit": limiter.Limit(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
