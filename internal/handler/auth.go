package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/aman-churiwal/quota-gateway/internal/metrics"
	"github.com/aman-churiwal/quota-gateway/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service *service.AuthService
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewAuthHandler(service *service.AuthService, m *metrics.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: m,
		log:     log,
	}
}

// Handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// An empty body is treated like missing credentials
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
		})
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		h.metrics.ObserveLogin(metrics.LoginInvalidCredentials)
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid credentials",
		})
		return
	}
	if err != nil {
		h.metrics.ObserveLogin(metrics.LoginError)
		h.log.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to issue token",
		})
		return
	}

	h.metrics.ObserveLogin(metrics.LoginSuccess)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     result.Token,
		"user_type": result.User.Tier,
	})
}
