package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/session"
)

// AuthHandler handles credential validation and enrollment
type AuthHandler struct {
	BaseHandler
	validator *session.Validator
	logger    *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(validator *session.Validator, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{validator: validator, logger: logger}
}

// LoginRequest carries a credential pair. FirstTime forces a live
// portal check and enrolls the pair on success.
type LoginRequest struct {
	Username  string `json:"username" binding:"required,username"`
	Password  string `json:"password" binding:"required"`
	FirstTime bool   `json:"first_time"`
}

// Login validates a credential pair, enrolling it when valid.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "username and password are required")
		return
	}

	if _, err := h.validator.Validate(c.Request.Context(), req.Username, req.Password, req.FirstTime); err != nil {
		h.DomainError(c, err)
		return
	}

	h.Success(c, gin.H{"username": req.Username})
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}
