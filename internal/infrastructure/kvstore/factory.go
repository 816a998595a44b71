package kvstore

import (
	"go.uber.org/zap"
)

// FactoryConfig selects and configures the store backend.
type FactoryConfig struct {
	// Backend is "redis" or "memory".
	Backend string
	Redis   RedisConfig
	// FallbackToMemory degrades to the in-memory store when Redis is
	// unreachable instead of failing startup.
	FallbackToMemory bool
}

// NewStore creates a Store from configuration. With FallbackToMemory
// set, a Redis connection failure degrades to the in-memory store so
// the service still comes up serving cache misses.
func NewStore(cfg FactoryConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case "memory":
		logger.Info("using in-memory key-value store")
		return NewMemoryStore(), nil
	case "redis", "":
		store, err := NewRedisStore(cfg.Redis)
		if err != nil {
			if cfg.FallbackToMemory {
				logger.Warn("redis unavailable, falling back to in-memory store",
					zap.String("host", cfg.Redis.Host),
					zap.Int("port", cfg.Redis.Port),
					zap.Error(err))
				return NewMemoryStore(), nil
			}
			return nil, err
		}
		logger.Info("connected to redis",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port),
			zap.Int("db", cfg.Redis.DB))
		return store, nil
	default:
		logger.Warn("unknown store backend, using in-memory store",
			zap.String("backend", cfg.Backend))
		return NewMemoryStore(), nil
	}
}
