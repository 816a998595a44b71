package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

// countingAuthenticator records calls and plays back a scripted result.
type countingAuthenticator struct {
	calls  int
	accept bool
	err    error
}

func (a *countingAuthenticator) Authenticate(_ context.Context, _, _ string) (bool, error) {
	a.calls++
	return a.accept, a.err
}

func newTestValidator(t *testing.T, auth *countingAuthenticator) (*Validator, *vault.Vault) {
	t.Helper()
	v, err := vault.New(kvstore.NewMemoryStore(), make([]byte, 32))
	require.NoError(t, err)
	require.True(t, v.SetAllowList(context.Background(), []string{"alice"}))
	return NewValidator(v, auth, nil), v
}

func TestValidate_FirstContactStores(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	password, err := validator.Validate(ctx, "alice", "pw1", true)
	require.NoError(t, err)
	assert.Equal(t, "pw1", password)
	assert.Equal(t, 1, auth.calls)

	stored, ok := v.Fetch(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "pw1", stored)
}

func TestValidate_StoredMatchSkipsPortal(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "pw1"))

	password, err := validator.Validate(ctx, "alice", "pw1", false)
	require.NoError(t, err)
	assert.Equal(t, "pw1", password)
	assert.Zero(t, auth.calls, "matching stored credentials must not hit the portal")
}

func TestValidate_MismatchReverifiesAndReplaces(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "old-pw"))

	password, err := validator.Validate(ctx, "alice", "new-pw", false)
	require.NoError(t, err)
	assert.Equal(t, "new-pw", password)
	assert.Equal(t, 1, auth.calls)

	stored, _ := v.Fetch(ctx, "alice")
	assert.Equal(t, "new-pw", stored)
}

func TestValidate_RejectedCredentials(t *testing.T) {
	auth := &countingAuthenticator{accept: false}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	_, err := validator.Validate(ctx, "alice", "wrong", true)
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
	assert.False(t, v.Exists(ctx, "alice"), "rejected credentials must not be stored")
}

func TestValidate_PortalUnreachable(t *testing.T) {
	auth := &countingAuthenticator{err: errors.New("connection refused")}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	_, err := validator.Validate(ctx, "alice", "pw1", true)
	assert.ErrorIs(t, err, portal.ErrAuthCheckFailed)
	assert.NotErrorIs(t, err, portal.ErrInvalidCredentials)
	assert.False(t, v.Exists(ctx, "alice"))
}

func TestValidate_NotAllowed(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, _ := newTestValidator(t, auth)

	_, err := validator.Validate(context.Background(), "mallory", "pw", true)
	assert.ErrorIs(t, err, portal.ErrNotAllowed)
	assert.Zero(t, auth.calls)
}

func TestValidateReadOnly_NeverWrites(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "old-pw"))

	_, err := validator.ValidateReadOnly(ctx, "alice", "new-pw")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
	assert.Zero(t, auth.calls, "a stored mismatch must be rejected without a portal call")

	stored, _ := v.Fetch(ctx, "alice")
	assert.Equal(t, "old-pw", stored, "read-only validation must not replace stored credentials")
}

func TestValidateReadOnly_NoStoredChecksPortalOnce(t *testing.T) {
	auth := &countingAuthenticator{accept: true}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	password, err := validator.ValidateReadOnly(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", password)
	assert.Equal(t, 1, auth.calls)
	assert.False(t, v.Exists(ctx, "alice"), "read-only validation must not enroll the user")
}

func TestValidateReadOnly_NoStoredPortalRejects(t *testing.T) {
	auth := &countingAuthenticator{accept: false}
	validator, _ := newTestValidator(t, auth)

	_, err := validator.ValidateReadOnly(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)
}

func TestValidateReadOnly_StoredMatch(t *testing.T) {
	auth := &countingAuthenticator{accept: false}
	validator, v := newTestValidator(t, auth)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "pw1"))

	_, err := validator.ValidateReadOnly(ctx, "alice", "pw1")
	assert.NoError(t, err)
	assert.Zero(t, auth.calls)
}
