package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStore implements Store on top of a Redis client. It is suitable
// for distributed deployments where multiple instances share state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing Redis client. Useful for
// testing or when sharing a client across components.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the value at key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores value at key with the given ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes keys and returns how many existed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete keys: %w", err)
	}
	return n, nil
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key %s: %w", key, err)
	}
	return n > 0, nil
}

// Expire resets the ttl on key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to expire key %s: %w", key, err)
	}
	return ok, nil
}

// MGet returns the present subset of keys in one round trip.
func (s *RedisStore) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget: %w", err)
	}
	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			out[keys[i]] = []byte(str)
		}
	}
	return out, nil
}

// HGet returns the value of field in the hash at key, or ErrNotFound.
func (s *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	val, err := s.client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hget %s/%s: %w", key, field, err)
	}
	return val, nil
}

// HSet sets field in the hash at key.
func (s *RedisStore) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("failed to hset %s/%s: %w", key, field, err)
	}
	return nil
}

// HDel removes field from the hash at key.
func (s *RedisStore) HDel(ctx context.Context, key, field string) (int64, error) {
	n, err := s.client.HDel(ctx, key, field).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to hdel %s/%s: %w", key, field, err)
	}
	return n, nil
}

// HExists reports whether field is present in the hash at key.
func (s *RedisStore) HExists(ctx context.Context, key, field string) (bool, error) {
	ok, err := s.client.HExists(ctx, key, field).Result()
	if err != nil {
		return false, fmt.Errorf("failed to hexists %s/%s: %w", key, field, err)
	}
	return ok, nil
}

// HKeys returns the field names of the hash at key.
func (s *RedisStore) HKeys(ctx context.Context, key string) ([]string, error) {
	fields, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hkeys %s: %w", key, err)
	}
	return fields, nil
}

// HGetAll returns every field of the hash at key.
func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hgetall %s: %w", key, err)
	}
	out := make(map[string][]byte, len(fields))
	for f, v := range fields {
		out[f] = []byte(v)
	}
	return out, nil
}

// Update performs an optimistic read-modify-write on key using
// WATCH/MULTI/EXEC. A concurrent write to key between the read and the
// transaction causes ErrConflict without retrying.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("failed to read key %s: %w", key, err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
