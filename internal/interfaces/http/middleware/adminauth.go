package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unisight/backend/internal/interfaces/http/dto"
)

// AdminSecretHeader carries the shared admin secret.
const AdminSecretHeader = "X-Admin-Secret"

// AdminAuth guards admin endpoints with a shared secret. An empty
// configured secret disables the endpoints entirely rather than
// leaving them open.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				dto.NewErrorResponse(dto.ErrCodeForbidden, "Admin endpoints are not configured"))
			return
		}

		supplied := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Invalid admin secret"))
			return
		}

		c.Next()
	}
}
