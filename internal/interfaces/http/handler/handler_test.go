package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisight/backend/internal/application/notify"
	"github.com/unisight/backend/internal/application/session"
	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	store     *kvstore.MemoryStore
	vault     *vault.Vault
	queue     *notify.Queue
	validator *session.Validator
	accept    *bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := kvstore.NewMemoryStore()
	v, err := vault.New(store, make([]byte, 32))
	require.NoError(t, err)
	require.True(t, v.SetAllowList(context.Background(), []string{"alice", "bob"}))

	accept := true
	auth := portal.AuthenticatorFunc(func(_ context.Context, _, _ string) (bool, error) {
		return accept, nil
	})

	return &testEnv{
		store:     store,
		vault:     v,
		queue:     notify.NewQueue(store),
		validator: session.NewValidator(v, auth, nil),
		accept:    &accept,
	}
}

func performJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewAuthHandler(env.validator, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/login",
		gin.H{"username": "alice", "password": "pw1", "first_time": true})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.True(t, env.vault.Exists(context.Background(), "alice"))
}

func TestAuthHandler_LoginRejected(t *testing.T) {
	env := newTestEnv(t)
	*env.accept = false
	router := gin.New()
	NewAuthHandler(env.validator, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/login",
		gin.H{"username": "alice", "password": "bad", "first_time": true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_LoginNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewAuthHandler(env.validator, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/login",
		gin.H{"username": "mallory", "password": "pw", "first_time": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler_LoginMissingFields(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewAuthHandler(env.validator, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/login", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_LoginMalformedUsername(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewAuthHandler(env.validator, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/login",
		gin.H{"username": "alice; drop table", "password": "pw", "first_time": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationsHandler_ReadAndClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.True(t, env.vault.Store(ctx, "alice", "pw1"))
	require.True(t, env.queue.Add(ctx, "alice", portal.Notification{
		Type: portal.NotificationGrade, Description: "New grade for Math 101: Quiz 2: 9/10",
	}))

	router := gin.New()
	NewNotificationsHandler(env.validator, env.queue, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/notifications",
		gin.H{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Notifications [][]string `json:"notifications"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Notifications, 1)
	assert.Equal(t, portal.NotificationGrade, resp.Data.Notifications[0][0])

	// Second read comes back empty.
	w = performJSON(router, http.MethodPost, "/api/v1/notifications",
		gin.H{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Notifications)
}

func TestNotificationsHandler_NoStoredCredentialsPortalRejects(t *testing.T) {
	env := newTestEnv(t)
	*env.accept = false
	router := gin.New()
	NewNotificationsHandler(env.validator, env.queue, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPost, "/api/v1/notifications",
		gin.H{"username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminHandler_AllowList(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewAdminHandler(env.vault, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodPut, "/api/v1/admin/allowlist",
		gin.H{"users": []string{"carol", "dave"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = performJSON(router, http.MethodGet, "/api/v1/admin/allowlist", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Users []string `json:"users"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"carol", "dave"}, resp.Data.Users)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.True(t, env.vault.Store(ctx, "alice", "pw1"))

	router := gin.New()
	NewAdminHandler(env.vault, nil).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodDelete, "/api/v1/admin/users/alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, env.vault.Exists(ctx, "alice"))

	w = performJSON(router, http.MethodDelete, "/api/v1/admin/users/alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemHandler_Health(t *testing.T) {
	env := newTestEnv(t)
	router := gin.New()
	NewSystemHandler(env.store).RegisterRoutes(router.Group("/api/v1"))

	w := performJSON(router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"ok"`)
}
