// Package cache provides the two-tier snapshot cache: an in-process
// hot layer in front of the shared key-value store. All operations
// degrade rather than fail: a broken store or an undecodable payload
// is logged and reported as a miss (reads) or a false success flag
// (writes), never as an error to the caller.
package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

// Suffixes for the hashed-pair layout: the snapshot body lives at
// "{base}:data" and its canonical fingerprint at "{base}:hash" so
// clients can probe for changes without downloading the body.
const (
	dataSuffix = ":data"
	hashSuffix = ":hash"
)

// Service is the snapshot cache facade used by the application layer.
type Service struct {
	store  kvstore.Store
	hot    *HotCache
	logger *zap.Logger
}

// ServiceOption is a functional option for configuring the service
type ServiceOption func(*Service)

// WithLogger sets the logger for the service
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithHotCache installs an in-process hot layer in front of the store.
func WithHotCache(hot *HotCache) ServiceOption {
	return func(s *Service) {
		s.hot = hot
	}
}

// NewService creates a cache service over the given store.
func NewService(store kvstore.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get loads the JSON value at key into dest. Returns false on a miss,
// a store error or an undecodable payload.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	raw, ok := s.GetRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cached payload is not decodable, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// GetRaw returns the raw JSON payload at key, consulting the hot
// layer first and warming it on a store hit.
func (s *Service) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	if s.hot != nil {
		if raw := s.hot.Get(key); raw != nil {
			return raw, true
		}
	}

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			s.logger.Warn("cache read failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}

	if s.hot != nil {
		s.hot.Set(key, raw)
	}
	return raw, true
}

// Set stores value as JSON at key with the given ttl. Returns false
// when the value cannot be encoded or the store write fails.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to encode value for caching",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return s.SetRaw(ctx, key, raw, ttl)
}

// SetRaw stores an already-encoded JSON payload at key.
func (s *Service) SetRaw(ctx context.Context, key string, raw []byte, ttl time.Duration) bool {
	if err := s.store.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("cache write failed",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	if s.hot != nil {
		s.hot.Set(key, raw)
	}
	return true
}

// Delete removes keys from both layers and returns how many the store
// actually held.
func (s *Service) Delete(ctx context.Context, keys ...string) int64 {
	if s.hot != nil {
		for _, key := range keys {
			s.hot.Delete(key)
		}
	}
	n, err := s.store.Delete(ctx, keys...)
	if err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return 0
	}
	return n
}

// SetBinary stores an opaque binary payload at key, base64-wrapped so
// the store only ever holds text. Returns false on failure.
func (s *Service) SetBinary(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	encoded := base64.StdEncoding.EncodeToString(data)
	if err := s.store.Set(ctx, key, []byte(encoded), ttl); err != nil {
		s.logger.Warn("binary cache write failed",
			zap.String("key", key),
			zap.Error(err))
		return false
	}
	return true
}

// GetBinary returns the binary payload at key. An unparsable payload
// counts as a miss.
func (s *Service) GetBinary(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			s.logger.Warn("binary cache read failed, treating as miss",
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		s.logger.Warn("binary payload is not decodable, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return data, true
}

// SetWithHash stores value at "{base}:data" and its canonical
// fingerprint at "{base}:hash", both with the same ttl. The pair lets
// clients poll the hash key to detect changes cheaply.
func (s *Service) SetWithHash(ctx context.Context, base string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to encode value for caching",
			zap.String("key", base),
			zap.Error(err))
		return false
	}

	if !s.SetRaw(ctx, base+dataSuffix, raw, ttl) {
		return false
	}
	if err := s.store.Set(ctx, base+hashSuffix, []byte(SnapshotHash(raw)), ttl); err != nil {
		// Data landed but the hash did not. Clients polling the stale
		// hash will refetch the body, so this only costs bandwidth.
		s.logger.Warn("hash companion write failed",
			zap.String("key", base),
			zap.Error(err))
	}
	return true
}

// GetWithHash loads the snapshot at "{base}:data" into dest and
// returns its stored fingerprint. hash is "" when the companion key
// is missing.
func (s *Service) GetWithHash(ctx context.Context, base string, dest any) (found bool, hash string) {
	if !s.Get(ctx, base+dataSuffix, dest) {
		return false, ""
	}
	raw, err := s.store.Get(ctx, base+hashSuffix)
	if err != nil {
		if !kvstore.IsNotFound(err) {
			s.logger.Warn("hash companion read failed",
				zap.String("key", base),
				zap.Error(err))
		}
		return true, ""
	}
	return true, string(raw)
}

// StoredHash returns the fingerprint companion of base, or "" when
// absent.
func (s *Service) StoredHash(ctx context.Context, base string) string {
	raw, err := s.store.Get(ctx, base+hashSuffix)
	if err != nil {
		return ""
	}
	return string(raw)
}

// RefreshTTL extends the lifetime of a hashed pair without rewriting
// it. Returns true if the data key existed.
func (s *Service) RefreshTTL(ctx context.Context, base string, ttl time.Duration) bool {
	ok, err := s.store.Expire(ctx, base+dataSuffix, ttl)
	if err != nil {
		s.logger.Warn("ttl refresh failed", zap.String("key", base), zap.Error(err))
		return false
	}
	if _, err := s.store.Expire(ctx, base+hashSuffix, ttl); err != nil {
		s.logger.Warn("ttl refresh failed on hash companion",
			zap.String("key", base),
			zap.Error(err))
	}
	return ok
}

// PrefetchSnapshots bulk-loads the given users' category snapshots
// into the hot layer in one store round trip. Returns how many
// entries were warmed. A no-op without a hot layer.
func (s *Service) PrefetchSnapshots(ctx context.Context, usernames []string, categories []portal.Category) int {
	if s.hot == nil {
		return 0
	}

	keys := make([]string, 0, len(usernames)*len(categories))
	for _, username := range usernames {
		for _, category := range categories {
			keys = append(keys, Key(category, username))
		}
	}

	values, err := s.store.MGet(ctx, keys)
	if err != nil {
		s.logger.Warn("snapshot prefetch failed", zap.Error(err))
		return 0
	}
	for key, raw := range values {
		s.hot.Set(key, raw)
	}

	s.logger.Debug("prefetched snapshots into hot cache",
		zap.Int("requested", len(keys)),
		zap.Int("warmed", len(values)))
	return len(values)
}

// Close stops the hot layer. The underlying store is owned by the
// caller and stays open.
func (s *Service) Close() {
	if s.hot != nil {
		s.hot.Stop()
	}
}
