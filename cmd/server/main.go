package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/notify"
	"github.com/unisight/backend/internal/application/refresh"
	"github.com/unisight/backend/internal/application/session"
	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/cache"
	"github.com/unisight/backend/internal/infrastructure/config"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
	"github.com/unisight/backend/internal/infrastructure/logger"
	"github.com/unisight/backend/internal/infrastructure/upstream"
	"github.com/unisight/backend/internal/infrastructure/vault"
	"github.com/unisight/backend/internal/interfaces/http/handler"
	"github.com/unisight/backend/internal/interfaces/http/middleware"
	"github.com/unisight/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	log.Info("starting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env))

	// Key-value store: Redis in production, with an in-memory
	// fallback outside it so development works without Redis.
	store, err := kvstore.NewStore(kvstore.FactoryConfig{
		Backend: "redis",
		Redis: kvstore.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		FallbackToMemory: cfg.App.Env != "production",
	}, log)
	if err != nil {
		log.Fatal("failed to connect to store", zap.Error(err))
	}
	defer store.Close()

	// Snapshot cache with its in-process hot layer.
	hot := cache.NewHotCache(
		cache.WithHotTTL(cfg.Cache.HotTTL),
		cache.WithHotLogger(log),
	)
	cacheSvc := cache.NewService(store,
		cache.WithLogger(log),
		cache.WithHotCache(hot),
	)
	defer cacheSvc.Close()

	// Credential vault.
	credVault, err := vault.New(store, cfg.Vault.EncryptionKeyBytes(), vault.WithLogger(log))
	if err != nil {
		log.Fatal("failed to initialize vault", zap.Error(err))
	}

	// Portal gateway client and the services on top of it.
	gateway := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		upstream.WithClientLogger(log))
	validator := session.NewValidator(credVault, gateway, log)
	queue := notify.NewQueue(store,
		notify.WithMaxLength(cfg.Notifications.MaxQueueLength),
		notify.WithQueueTTL(cfg.Notifications.QueueTTL),
		notify.WithQueueLogger(log),
	)

	orchestrator := buildOrchestrator(cfg, cacheSvc, queue, gateway, log)

	// Warm the hot layer for everyone already enrolled.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		warmed := cacheSvc.PrefetchSnapshots(ctx, credVault.Usernames(ctx), portal.AllCategories())
		cancel()
		log.Info("hot cache warmed", zap.Int("entries", warmed))
	}

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(engine)
	r.Register(handler.NewSystemHandler(store))
	r.Register(handler.NewAuthHandler(validator, log))
	r.Register(handler.NewNotificationsHandler(validator, queue, log))
	r.RegisterGroup("",
		[]gin.HandlerFunc{middleware.AdminAuth(cfg.Vault.AdminSecret)},
		handler.NewRefreshHandler(orchestrator, credVault, log),
		handler.NewAdminHandler(credVault, log),
	)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited gracefully")
}

// buildOrchestrator wires every category fetcher, its TTL and change
// detector, plus the course-content fan-out.
func buildOrchestrator(cfg *config.Config, cacheSvc *cache.Service, queue *notify.Queue, gateway *upstream.Client, log *zap.Logger) *refresh.Orchestrator {
	refreshCfg := refresh.Config{
		MaxConcurrentUsers:   cfg.Refresh.MaxConcurrentUsers,
		MaxConcurrentFetches: cfg.Refresh.MaxConcurrentFetches,
		MaxConcurrentCourses: cfg.Refresh.MaxConcurrentCourses,
		FetchTimeout:         cfg.Refresh.FetchTimeout,
		RetryAttempts:        uint(cfg.Refresh.RetryAttempts),
		RetryDelay:           cfg.Refresh.RetryDelay,
	}

	orchestrator := refresh.NewOrchestrator(cacheSvc, queue, refreshCfg, log)

	orchestrator.RegisterCategory(portal.CategoryPortalData, refresh.CategorySpec{
		Fetcher:  gateway.CategoryFetcher(portal.CategoryPortalData),
		TTL:      cfg.Cache.DefaultTTL,
		Detector: notify.NewPortalDataDetector(log),
		HashPair: true,
	})
	orchestrator.RegisterCategory(portal.CategoryGrades, refresh.CategorySpec{
		Fetcher:  gateway.CategoryFetcher(portal.CategoryGrades),
		TTL:      cfg.Cache.DefaultTTL,
		Detector: notify.NewGradesDetector(log),
	})
	orchestrator.RegisterCategory(portal.CategoryAttendance, refresh.CategorySpec{
		Fetcher:  gateway.CategoryFetcher(portal.CategoryAttendance),
		TTL:      cfg.Cache.DefaultTTL,
		Detector: notify.NewAttendanceDetector(log),
	})
	orchestrator.RegisterCategory(portal.CategoryExamSeats, refresh.CategorySpec{
		Fetcher: gateway.CategoryFetcher(portal.CategoryExamSeats),
		TTL:     cfg.Cache.DefaultTTL,
	})
	orchestrator.RegisterCategory(portal.CategorySchedule, refresh.CategorySpec{
		Fetcher: gateway.CategoryFetcher(portal.CategorySchedule),
		TTL:     cfg.Cache.LongTTL,
	})
	orchestrator.RegisterCategory(portal.CategoryCourses, refresh.CategorySpec{
		Fetcher: gateway.CategoryFetcher(portal.CategoryCourses),
		TTL:     cfg.Cache.LongTTL,
	})

	orchestrator.RegisterContentSyncer(refresh.NewContentSyncer(
		cacheSvc, gateway, gateway, cfg.Cache.ContentTTL, refreshCfg, log))

	return orchestrator
}
