package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/refresh"
	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

// RefreshHandler triggers refresh runs. Admin only.
type RefreshHandler struct {
	BaseHandler
	orchestrator *refresh.Orchestrator
	vault        *vault.Vault
	logger       *zap.Logger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(orchestrator *refresh.Orchestrator, v *vault.Vault, logger *zap.Logger) *RefreshHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshHandler{orchestrator: orchestrator, vault: v, logger: logger}
}

// RefreshRequest narrows a run. Empty usernames means every enrolled
// user; empty categories means all of them.
type RefreshRequest struct {
	Usernames  []string `json:"usernames"`
	Categories []string `json:"categories"`
}

// Run refreshes the requested users and categories synchronously and
// returns the per-pair status summary.
func (h *RefreshHandler) Run(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, "malformed refresh request")
		return
	}

	var categories []portal.Category
	for _, name := range req.Categories {
		if !portal.ValidCategory(name) {
			h.BadRequest(c, "unknown category: "+name)
			return
		}
		categories = append(categories, portal.Category(name))
	}

	ctx := c.Request.Context()

	wanted := make(map[string]bool, len(req.Usernames))
	for _, u := range req.Usernames {
		wanted[u] = true
	}

	var users []refresh.User
	var skipped []string
	for _, cred := range h.vault.All(ctx) {
		if len(wanted) > 0 && !wanted[cred.Username] {
			continue
		}
		if cred.DecryptFailed {
			skipped = append(skipped, cred.Username)
			continue
		}
		users = append(users, refresh.User{Username: cred.Username, Password: cred.Password})
	}

	summary := h.orchestrator.Run(ctx, users, categories)

	h.Success(c, gin.H{
		"summary":       summary,
		"skipped_users": skipped,
		"refreshed":     len(users),
	})
}

// RegisterRoutes registers refresh routes
func (h *RefreshHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/refresh", h.Run)
}
