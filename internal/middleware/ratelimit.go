// File: internal/middleware/ratelimit.go
package middleware

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/iyunix/go-mechanic/internal/ratelimit"
)

// TierFor picks the rate-limit tier of the caller on ctx.
func TierFor(r *http.Request) ratelimit.Tier {
	id, ok := IdentityFromContext(r.Context())
	switch {
	case !ok:
		return ratelimit.TierGuest
	case id.Premium:
		return ratelimit.TierPremium
	default:
		return ratelimit.TierAuthenticated
	}
}

// RateLimitMiddleware bills each request against the caller's tier. Authenticated
// callers are keyed by user ID, guests by client IP. It must run after NewIdentityMiddleware.
func RateLimitMiddleware(limiter *ratelimit.TieredLimiter, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := TierFor(r)
			identifier := ratelimit.Identifier(UserIDFromContext(r.Context()), r)

			allowed, info := limiter.Allow(tier, identifier)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))

			if !allowed {
				retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
				logger.Warn("rate limit exceeded", "tier", string(tier), "identifier", identifier, "retry_after", retryAfter)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "Diagnosis limit reached. Please try again later.",
					"tier":       tier,
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
