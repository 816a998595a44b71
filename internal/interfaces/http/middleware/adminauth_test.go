package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func adminRouter(secret string) *gin.Engine {
	router := gin.New()
	router.GET("/admin/ping", AdminAuth(secret), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAdminAuth_ValidSecret(t *testing.T) {
	router := adminRouter("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AdminSecretHeader, "s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_WrongSecret(t *testing.T) {
	router := adminRouter("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(AdminSecretHeader, "guess")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_MissingSecret(t *testing.T) {
	router := adminRouter("s3cret")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_UnconfiguredSecretDisables(t *testing.T) {
	router := adminRouter("")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
