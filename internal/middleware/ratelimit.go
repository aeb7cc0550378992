package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/aman-churiwal/quota-gateway/internal/metrics"
	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/aman-churiwal/quota-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

type IdentityResolver interface {
	Resolve(authorization, remoteAddr string) models.Identity
}

// ProtectedHandler runs only for admitted requests
type ProtectedHandler func(c *gin.Context, decision ratelimit.Decision)

// ResolveIdentity resolves the caller and records the identity on the context
func ResolveIdentity(c *gin.Context, resolver IdentityResolver) models.Identity {
	identity := resolver.Resolve(c.GetHeader("Authorization"), c.ClientIP())
	c.Set(identityKey, identity)
	return identity
}

func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// RateLimit resolves the caller, charges one request against its quota and
// only then runs next. Rejected requests get a 429 and next is never called.
func RateLimit(resolver IdentityResolver, limiter ratelimit.Limiter, m *metrics.Metrics, log *zap.Logger, next ProtectedHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ResolveIdentity(c, resolver)

		decision, err := limiter.Allow(c.Request.Context(), identity)
		if err != nil {
			log.Error("rate limit check failed", zap.String("identity", identity.Key), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Rate limit check failed",
			})
			return
		}

		m.ObserveDecision(identity.Tier, decision.Allowed)
		setRateLimitHeaders(c, decision)

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter(decision.DecidedAt).Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			log.Info("request rate limited",
				zap.String("identity", identity.Key),
				zap.String("tier", identity.Tier.String()),
				zap.Int("limit", decision.Limit),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":            false,
				"error":              fmt.Sprintf("Too many requests. %s users can make %d requests per hour.", decision.Tier, decision.Limit),
				"remaining_requests": 0,
			})
			return
		}

		log.Debug("request admitted",
			zap.String("identity", identity.Key),
			zap.Int("remaining", decision.Remaining),
		)

		next(c, decision)
	}
}

func setRateLimitHeaders(c *gin.Context, decision ratelimit.Decision) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	c.Header("X-RateLimit-Tier", decision.Tier.String())
}
