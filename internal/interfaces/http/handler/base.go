package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message))
}

// BadRequest sends a 400 response for malformed input
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// DomainError maps a domain error to its HTTP rendering.
func (h *BaseHandler) DomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, portal.ErrInvalidCredentials):
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Invalid username or password")
	case errors.Is(err, portal.ErrNotAllowed):
		h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "User is not allowed to use this service")
	case errors.Is(err, portal.ErrAuthCheckFailed):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable, "Credential verification is temporarily unavailable")
	default:
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An internal error occurred")
	}
}
