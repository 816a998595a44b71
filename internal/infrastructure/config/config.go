package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Redis         RedisConfig
	Vault         VaultConfig
	Cache         CacheConfig
	Refresh       RefreshConfig
	Notifications NotificationsConfig
	Upstream      UpstreamConfig
	HTTP          HTTPConfig
	Log           LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// VaultConfig holds credential vault settings
type VaultConfig struct {
	// EncryptionKey is the base64-encoded 32-byte key used to encrypt
	// stored passwords. The server refuses to start without it.
	EncryptionKey string
	AdminSecret   string
}

// CacheConfig holds cache TTL settings
type CacheConfig struct {
	DefaultTTL time.Duration // volatile data: grades, attendance, exam seats
	LongTTL    time.Duration // semi-static data: schedule, course list
	ContentTTL time.Duration // bulk course content snapshots
	HotTTL     time.Duration // in-process accelerator entries
}

// RefreshConfig holds orchestrator concurrency and timing settings
type RefreshConfig struct {
	MaxConcurrentUsers   int
	MaxConcurrentFetches int // per user
	MaxConcurrentCourses int // bulk content fan-out
	FetchTimeout         time.Duration
	RetryAttempts        int
	RetryDelay           time.Duration
}

// NotificationsConfig holds notification queue settings
type NotificationsConfig struct {
	MaxQueueLength int
	QueueTTL       time.Duration
}

// UpstreamConfig holds the portal gateway connection settings
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/unisight")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("UNISIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Vault: VaultConfig{
			EncryptionKey: v.GetString("vault.encryption_key"),
			AdminSecret:   v.GetString("vault.admin_secret"),
		},
		Cache: CacheConfig{
			DefaultTTL: v.GetDuration("cache.default_ttl"),
			LongTTL:    v.GetDuration("cache.long_ttl"),
			ContentTTL: v.GetDuration("cache.content_ttl"),
			HotTTL:     v.GetDuration("cache.hot_ttl"),
		},
		Refresh: RefreshConfig{
			MaxConcurrentUsers:   v.GetInt("refresh.max_concurrent_users"),
			MaxConcurrentFetches: v.GetInt("refresh.max_concurrent_fetches"),
			MaxConcurrentCourses: v.GetInt("refresh.max_concurrent_courses"),
			FetchTimeout:         v.GetDuration("refresh.fetch_timeout"),
			RetryAttempts:        v.GetInt("refresh.retry_attempts"),
			RetryDelay:           v.GetDuration("refresh.retry_delay"),
		},
		Notifications: NotificationsConfig{
			MaxQueueLength: v.GetInt("notifications.max_queue_length"),
			QueueTTL:       v.GetDuration("notifications.queue_ttl"),
		},
		Upstream: UpstreamConfig{
			BaseURL: v.GetString("upstream.base_url"),
			Timeout: v.GetDuration("upstream.timeout"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "unisight-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.DefaultTTL == 0 {
		cfg.Cache.DefaultTTL = 5 * time.Hour
	}
	if cfg.Cache.LongTTL == 0 {
		cfg.Cache.LongTTL = 60 * 24 * time.Hour
	}
	if cfg.Cache.ContentTTL == 0 {
		cfg.Cache.ContentTTL = 5 * time.Hour
	}
	if cfg.Cache.HotTTL == 0 {
		cfg.Cache.HotTTL = 30 * time.Minute
	}
	if cfg.Refresh.MaxConcurrentUsers == 0 {
		cfg.Refresh.MaxConcurrentUsers = 10
	}
	if cfg.Refresh.MaxConcurrentFetches == 0 {
		cfg.Refresh.MaxConcurrentFetches = 5
	}
	if cfg.Refresh.MaxConcurrentCourses == 0 {
		cfg.Refresh.MaxConcurrentCourses = 4
	}
	if cfg.Refresh.FetchTimeout == 0 {
		cfg.Refresh.FetchTimeout = 30 * time.Second
	}
	if cfg.Refresh.RetryAttempts == 0 {
		cfg.Refresh.RetryAttempts = 3
	}
	if cfg.Refresh.RetryDelay == 0 {
		cfg.Refresh.RetryDelay = 5 * time.Second
	}
	if cfg.Notifications.MaxQueueLength == 0 {
		cfg.Notifications.MaxQueueLength = 2
	}
	if cfg.Notifications.QueueTTL == 0 {
		cfg.Notifications.QueueTTL = 365 * 24 * time.Hour
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 20 * time.Second
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

// validate checks that the configuration is usable
func (c *Config) validate() error {
	if c.Vault.EncryptionKey == "" {
		return fmt.Errorf("vault.encryption_key is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.Vault.EncryptionKey)
	if err != nil {
		return fmt.Errorf("vault.encryption_key must be base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("vault.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	if c.Notifications.MaxQueueLength < 1 {
		return fmt.Errorf("notifications.max_queue_length must be positive")
	}
	if c.Refresh.MaxConcurrentUsers < 1 || c.Refresh.MaxConcurrentFetches < 1 {
		return fmt.Errorf("refresh concurrency limits must be positive")
	}
	return nil
}

// EncryptionKeyBytes returns the decoded vault key. validate has already
// checked the encoding, so failures here indicate a programming error.
func (c *VaultConfig) EncryptionKeyBytes() []byte {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		panic("vault encryption key not validated: " + err.Error())
	}
	return key
}

// Addr returns the host:port address for the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
