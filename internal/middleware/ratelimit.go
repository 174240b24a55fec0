package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Tier names the three path classes of spec §4.N.
type Tier string

const (
	TierFree      Tier = "free"
	TierPaid      Tier = "paid"
	TierExpensive Tier = "expensive"
)

// tierLimits is the per-tier ceiling of spec §4.N, expressed as
// requests-per-second (rate.Limiter's native unit) with a one-minute burst.
var tierLimits = map[Tier]rate.Limit{
	TierFree:      rate.Limit(60.0 / 60),
	TierPaid:      rate.Limit(300.0 / 60),
	TierExpensive: rate.Limit(10.0 / 60),
}

var tierBurst = map[Tier]int{
	TierFree:      60,
	TierPaid:      300,
	TierExpensive: 10,
}

// TieredRateLimiter tracks one token-bucket limiter per (client, tier) pair,
// grounded on the teacher corpus's TieredRateLimiter over
// golang.org/x/time/rate, adapted to the three fixed tiers of spec §4.N.
type TieredRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTieredRateLimiter constructs an empty limiter set.
func NewTieredRateLimiter() *TieredRateLimiter {
	return &TieredRateLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (trl *TieredRateLimiter) limiterFor(clientKey string, tier Tier) *rate.Limiter {
	key := string(tier) + "|" + clientKey
	trl.mu.Lock()
	defer trl.mu.Unlock()
	l, ok := trl.limiters[key]
	if !ok {
		limit, ok := tierLimits[tier]
		if !ok {
			limit = tierLimits[TierFree]
		}
		burst := tierBurst[tier]
		if burst == 0 {
			burst = tierBurst[TierFree]
		}
		l = rate.NewLimiter(limit, burst)
		trl.limiters[key] = l
	}
	return l
}

// Allow reports whether the given client may proceed under the given tier.
func (trl *TieredRateLimiter) Allow(clientKey string, tier Tier) bool {
	return trl.limiterFor(clientKey, tier).Allow()
}

// ClassifyFunc maps an incoming request to its rate-limit tier (e.g. by
// matched Service category or by route prefix).
type ClassifyFunc func(c *gin.Context) Tier

// clientKeyFunc extracts the per-client identity a limiter is keyed on.
type clientKeyFunc func(c *gin.Context) string

// DefaultClientKey keys by remote IP; callers presenting an API key should
// substitute a keyFunc that reads it instead.
func DefaultClientKey(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimit returns gin middleware enforcing spec §4.N's three tiers,
// responding 429 with a JSON error and RateLimit-* headers on rejection.
func RateLimit(trl *TieredRateLimiter, classify ClassifyFunc, keyFn clientKeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = DefaultClientKey
	}
	return func(c *gin.Context) {
		tier := classify(c)
		clientKey := keyFn(c)

		c.Header("RateLimit-Limit", rateLimitHeaderValue(tier))
		if !trl.Allow(clientKey, tier) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"tier":  string(tier),
			})
			return
		}
		c.Next()
	}
}

func rateLimitHeaderValue(tier Tier) string {
	switch tier {
	case TierPaid:
		return "300"
	case TierExpensive:
		return "10"
	default:
		return "60"
	}
}
