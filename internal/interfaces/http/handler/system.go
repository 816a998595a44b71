package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

// SystemHandler serves health and readiness probes
type SystemHandler struct {
	BaseHandler
	store kvstore.Store
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(store kvstore.Store) *SystemHandler {
	return &SystemHandler{store: store}
}

// Health reports liveness plus store connectivity.
func (h *SystemHandler) Health(c *gin.Context) {
	storeStatus := "ok"
	status := http.StatusOK
	if err := h.store.Ping(c.Request.Context()); err != nil {
		storeStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": "up",
		"store":  storeStatus,
	})
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}
