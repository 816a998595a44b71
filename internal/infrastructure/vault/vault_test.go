package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

func testKey() []byte {
	return make([]byte, 32)
}

func newTestVault(t *testing.T) (*Vault, *kvstore.MemoryStore) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	v, err := New(store, testKey())
	require.NoError(t, err)
	return v, store
}

func TestNew_BadKeyLength(t *testing.T) {
	_, err := New(kvstore.NewMemoryStore(), []byte("short"))
	assert.Error(t, err)
}

func TestVault_StoreFetch(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "s3cret"))

	password, ok := v.Fetch(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, "s3cret", password)
}

func TestVault_FetchMissing(t *testing.T) {
	v, _ := newTestVault(t)

	_, ok := v.Fetch(context.Background(), "nobody")
	assert.False(t, ok)
}

func TestVault_PlaintextNeverStored(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "s3cret"))

	blob, err := store.HGet(ctx, "user_credentials", "alice")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "s3cret")
}

func TestVault_TamperedBlobIsAbsent(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "s3cret"))

	blob, err := store.HGet(ctx, "user_credentials", "alice")
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, store.HSet(ctx, "user_credentials", "alice", blob))

	_, ok := v.Fetch(ctx, "alice")
	assert.False(t, ok)
}

func TestVault_ExistsDelete(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	assert.False(t, v.Exists(ctx, "alice"))
	require.True(t, v.Store(ctx, "alice", "s3cret"))
	assert.True(t, v.Exists(ctx, "alice"))

	assert.True(t, v.Delete(ctx, "alice"))
	assert.False(t, v.Delete(ctx, "alice"))
	assert.False(t, v.Exists(ctx, "alice"))
}

func TestVault_Usernames(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "bob", "pw2"))
	require.True(t, v.Store(ctx, "alice", "pw1"))

	assert.Equal(t, []string{"alice", "bob"}, v.Usernames(ctx))
}

func TestVault_AllReportsPartialFailures(t *testing.T) {
	v, store := newTestVault(t)
	ctx := context.Background()

	require.True(t, v.Store(ctx, "alice", "pw1"))
	require.True(t, v.Store(ctx, "bob", "pw2"))
	require.NoError(t, store.HSet(ctx, "user_credentials", "bob", []byte("garbage")))

	creds := v.All(ctx)
	require.Len(t, creds, 2)
	assert.Equal(t, Credential{Username: "alice", Password: "pw1"}, creds[0])
	assert.Equal(t, Credential{Username: "bob", DecryptFailed: true}, creds[1])
}

func TestVault_AllowList(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	assert.Empty(t, v.AllowList(ctx))
	assert.False(t, v.IsAllowed(ctx, "alice"))

	require.True(t, v.SetAllowList(ctx, []string{"alice", " bob ", ""}))
	assert.Equal(t, []string{"alice", "bob"}, v.AllowList(ctx))
	assert.True(t, v.IsAllowed(ctx, "alice"))
	assert.True(t, v.IsAllowed(ctx, "bob"))
	assert.False(t, v.IsAllowed(ctx, "carol"))
}

func TestVault_WrongKeyCannotOpen(t *testing.T) {
	store := kvstore.NewMemoryStore()
	ctx := context.Background()

	v1, err := New(store, testKey())
	require.NoError(t, err)
	require.True(t, v1.Store(ctx, "alice", "s3cret"))

	otherKey := testKey()
	otherKey[0] = 1
	v2, err := New(store, otherKey)
	require.NoError(t, err)

	_, ok := v2.Fetch(ctx, "alice")
	assert.False(t, ok)
}
