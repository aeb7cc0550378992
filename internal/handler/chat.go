package handler

import (
	"net/http"

	"github.com/aman-churiwal/quota-gateway/internal/middleware"
	"github.com/aman-churiwal/quota-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const placeholderReply = "This is a fake AI response."

type ChatHandler struct {
	resolver middleware.IdentityResolver
	limiter  ratelimit.Limiter
	log      *zap.Logger
}

func NewChatHandler(resolver middleware.IdentityResolver, limiter ratelimit.Limiter, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		resolver: resolver,
		limiter:  limiter,
		log:      log,
	}
}

// Handles POST /chat once the rate limiter has admitted the request
func (h *ChatHandler) Chat(c *gin.Context, decision ratelimit.Decision) {
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            placeholderReply,
		"remaining_requests": decision.Remaining,
	})
}

// Handles GET /status. Reports the caller's quota without consuming it.
func (h *ChatHandler) Status(c *gin.Context) {
	identity := middleware.ResolveIdentity(c, h.resolver)

	remaining, err := h.limiter.Remaining(c.Request.Context(), identity)
	if err != nil {
		h.log.Error("quota lookup failed", zap.String("identity", identity.Key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Rate limit check failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"remaining_requests": remaining,
	})
}
