package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/notify"
	"github.com/unisight/backend/internal/application/session"
)

// NotificationsHandler serves the per-user notification queue
type NotificationsHandler struct {
	BaseHandler
	validator *session.Validator
	queue     *notify.Queue
	logger    *zap.Logger
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(validator *session.Validator, queue *notify.Queue, logger *zap.Logger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{validator: validator, queue: queue, logger: logger}
}

// NotificationsRequest carries the credential pair of the reader.
type NotificationsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Read returns and clears the caller's queued notifications. The read
// is destructive, hence POST. Validation never enrolls here.
func (h *NotificationsHandler) Read(c *gin.Context) {
	var req NotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "username and password are required")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.validator.ValidateReadOnly(ctx, req.Username, req.Password); err != nil {
		h.DomainError(c, err)
		return
	}

	notifications := h.queue.Read(ctx, req.Username)
	h.Success(c, gin.H{"notifications": notifications})
}

// RegisterRoutes registers notification routes
func (h *NotificationsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Read)
}
