package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/interfaces/http/dto"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

// AdminHandler manages the allow list and enrolled users
type AdminHandler struct {
	BaseHandler
	vault  *vault.Vault
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(v *vault.Vault, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{vault: v, logger: logger}
}

// GetAllowList returns the enrollable usernames.
func (h *AdminHandler) GetAllowList(c *gin.Context) {
	h.Success(c, gin.H{"users": h.vault.AllowList(c.Request.Context())})
}

// AllowListRequest replaces the allow list wholesale.
type AllowListRequest struct {
	Users []string `json:"users" binding:"required"`
}

// PutAllowList replaces the allow list.
func (h *AdminHandler) PutAllowList(c *gin.Context) {
	var req AllowListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "users list is required")
		return
	}

	if !h.vault.SetAllowList(c.Request.Context(), req.Users) {
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "Failed to store allow list")
		return
	}

	h.logger.Info("allow list replaced", zap.Int("users", len(req.Users)))
	h.Success(c, gin.H{"users": h.vault.AllowList(c.Request.Context())})
}

// ListUsers returns every enrolled username.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	h.Success(c, gin.H{"users": h.vault.Usernames(c.Request.Context())})
}

// DeleteUser removes one user's stored credentials.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		h.BadRequest(c, "username is required")
		return
	}

	if !h.vault.Delete(c.Request.Context(), username) {
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "No credentials stored for this user")
		return
	}

	h.logger.Info("credentials deleted", zap.String("username", username))
	h.NoContent(c)
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.GET("/allowlist", h.GetAllowList)
	admin.PUT("/allowlist", h.PutAllowList)
	admin.GET("/users", h.ListUsers)
	admin.DELETE("/users/:username", h.DeleteUser)
}
