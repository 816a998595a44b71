package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestService_SetGet(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())
	ctx := context.Background()

	ok := svc.Set(ctx, "grades:alice", snapshot{Name: "alice", Count: 3}, time.Hour)
	require.True(t, ok)

	var got snapshot
	require.True(t, svc.Get(ctx, "grades:alice", &got))
	assert.Equal(t, snapshot{Name: "alice", Count: 3}, got)
}

func TestService_GetMiss(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())

	var got snapshot
	assert.False(t, svc.Get(context.Background(), "grades:nobody", &got))
}

func TestService_UndecodablePayloadIsMiss(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "grades:alice", []byte("{broken"), 0))

	var got snapshot
	assert.False(t, svc.Get(ctx, "grades:alice", &got))
}

func TestService_Delete(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "k1", snapshot{}, 0))
	assert.Equal(t, int64(1), svc.Delete(ctx, "k1", "k2"))

	var got snapshot
	assert.False(t, svc.Get(ctx, "k1", &got))
}

func TestService_Binary(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	require.True(t, svc.SetBinary(ctx, "blob:alice", payload, time.Hour))

	// The store only ever sees text.
	raw, err := store.Get(ctx, "blob:alice")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\x00")

	got, ok := svc.GetBinary(ctx, "blob:alice")
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestService_BinaryUnparsableIsMiss(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "blob:alice", []byte("!!not base64!!"), 0))

	_, ok := svc.GetBinary(ctx, "blob:alice")
	assert.False(t, ok)
}

func TestService_SetWithHash(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	base := Key(portal.CategoryPortalData, "alice")
	require.True(t, svc.SetWithHash(ctx, base, snapshot{Name: "alice"}, time.Hour))

	var got snapshot
	found, hash := svc.GetWithHash(ctx, base, &got)
	require.True(t, found)
	assert.Equal(t, "alice", got.Name)

	raw, err := store.Get(ctx, base+dataSuffix)
	require.NoError(t, err)
	assert.Equal(t, SnapshotHash(raw), hash)
}

func TestService_StoredHashMissing(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())
	assert.Empty(t, svc.StoredHash(context.Background(), "portal_data:nobody"))
}

func TestService_RefreshTTL(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())
	ctx := context.Background()

	assert.False(t, svc.RefreshTTL(ctx, "portal_data:nobody", time.Hour))

	base := Key(portal.CategoryPortalData, "alice")
	require.True(t, svc.SetWithHash(ctx, base, snapshot{Name: "alice"}, 10*time.Millisecond))
	require.True(t, svc.RefreshTTL(ctx, base, time.Hour))

	time.Sleep(20 * time.Millisecond)

	var got snapshot
	found, _ := svc.GetWithHash(ctx, base, &got)
	assert.True(t, found, "refreshed pair should outlive the original TTL")
}

func TestService_HotCacheServesAfterStoreLoss(t *testing.T) {
	store := kvstore.NewMemoryStore()
	hot := NewHotCache(WithHotTTL(time.Minute))
	defer hot.Stop()
	svc := NewService(store, WithHotCache(hot))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "grades:alice", snapshot{Name: "alice"}, time.Hour))

	// Drop the key behind the hot layer's back. The hot layer may
	// serve it until its own TTL runs out.
	_, err := store.Delete(ctx, "grades:alice")
	require.NoError(t, err)

	var got snapshot
	assert.True(t, svc.Get(ctx, "grades:alice", &got))
	assert.Equal(t, "alice", got.Name)
}

func TestService_PrefetchSnapshots(t *testing.T) {
	store := kvstore.NewMemoryStore()
	hot := NewHotCache(WithHotTTL(time.Minute))
	defer hot.Stop()
	svc := NewService(store, WithHotCache(hot))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, Key(portal.CategoryGrades, "alice"), snapshot{Name: "alice"}, time.Hour))
	require.True(t, svc.Set(ctx, Key(portal.CategorySchedule, "bob"), snapshot{Name: "bob"}, time.Hour))

	warmed := svc.PrefetchSnapshots(ctx, []string{"alice", "bob"},
		[]portal.Category{portal.CategoryGrades, portal.CategorySchedule})
	assert.Equal(t, 2, warmed)

	hits, _ := hot.Stats()
	var got snapshot
	require.True(t, svc.Get(ctx, Key(portal.CategoryGrades, "alice"), &got))
	newHits, _ := hot.Stats()
	assert.Equal(t, hits+1, newHits, "prefetched read should hit the hot layer")
}

func TestService_PrefetchWithoutHotLayer(t *testing.T) {
	svc := NewService(kvstore.NewMemoryStore())
	assert.Zero(t, svc.PrefetchSnapshots(context.Background(), []string{"alice"},
		[]portal.Category{portal.CategoryGrades}))
}
