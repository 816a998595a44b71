package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	version   uint64
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-memory Store for tests and single-node
// development. Not suitable for multi-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*memoryEntry
	hashes map[string]map[string][]byte

	// failUpdates forces the next n Update calls to report a conflict.
	failUpdates int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]*memoryEntry),
		hashes: make(map[string]map[string][]byte),
	}
}

// FailNextUpdates makes the next n Update calls return ErrConflict.
// Test hook for exercising optimistic-concurrency paths.
func (s *MemoryStore) FailNextUpdates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates = n
}

func (s *MemoryStore) get(key string) (*memoryEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.data, key)
		return nil, false
	}
	return e, true
}

// Get returns the value at key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value at key with the given ttl.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

func (s *MemoryStore) setLocked(key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	var version uint64
	if prev, ok := s.data[key]; ok {
		version = prev.version + 1
	}
	s.data[key] = &memoryEntry{value: stored, version: version, expiresAt: expiresAt}
}

// Delete removes keys and returns how many existed.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := s.get(key); ok {
			delete(s.data, key)
			n++
		}
		if _, ok := s.hashes[key]; ok {
			delete(s.hashes, key)
			n++
		}
	}
	return n, nil
}

// Exists reports whether key is present.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.get(key); ok {
		return true, nil
	}
	_, ok := s.hashes[key]
	return ok, nil
}

// Expire resets the ttl on key.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	return true, nil
}

// MGet returns the present subset of keys.
func (s *MemoryStore) MGet(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if e, ok := s.get(key); ok {
			val := make([]byte, len(e.value))
			copy(val, e.value)
			out[key] = val
		}
	}
	return out, nil
}

// HGet returns the value of field in the hash at key, or ErrNotFound.
func (s *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// HSet sets field in the hash at key.
func (s *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	h[field] = stored
	return nil
}

// HDel removes field from the hash at key.
func (s *MemoryStore) HDel(_ context.Context, key, field string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		return 0, nil
	}
	if _, ok := h[field]; !ok {
		return 0, nil
	}
	delete(h, field)
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return 1, nil
}

// HExists reports whether field is present in the hash at key.
func (s *MemoryStore) HExists(_ context.Context, key, field string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return false, nil
	}
	_, ok = h[field]
	return ok, nil
}

// HKeys returns the field names of the hash at key.
func (s *MemoryStore) HKeys(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return nil, nil
	}
	fields := make([]string, 0, len(h))
	for f := range h {
		fields = append(fields, f)
	}
	return fields, nil
}

// HGetAll returns every field of the hash at key.
func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hashes[key]
	if !ok {
		return map[string][]byte{}, nil
	}
	out := make(map[string][]byte, len(h))
	for f, v := range h {
		val := make([]byte, len(v))
		copy(val, v)
		out[f] = val
	}
	return out, nil
}

// Update performs a read-modify-write on key. The store lock makes the
// operation atomic; conflicts only occur through FailNextUpdates.
func (s *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failUpdates > 0 {
		s.failUpdates--
		return ErrConflict
	}

	var current []byte
	if e, ok := s.get(key); ok {
		current = make([]byte, len(e.value))
		copy(current, e.value)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	s.setLocked(key, next, ttl)
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
