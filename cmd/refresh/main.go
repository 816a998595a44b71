// Command refresh runs one refresh cycle from the command line, the
// way cron drives it in production. Sections group categories so the
// frequent cheap ones and the heavy content sync can run on different
// schedules.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/notify"
	"github.com/unisight/backend/internal/application/refresh"
	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/cache"
	"github.com/unisight/backend/internal/infrastructure/config"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
	"github.com/unisight/backend/internal/infrastructure/logger"
	"github.com/unisight/backend/internal/infrastructure/upstream"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

// sections maps a schedule slot to its categories.
var sections = map[string][]portal.Category{
	"1": {portal.CategoryPortalData, portal.CategoryExamSeats},
	"2": {portal.CategorySchedule, portal.CategoryCourses},
	"3": {portal.CategoryGrades, portal.CategoryAttendance},
	"4": {portal.CategoryContent},
}

func main() {
	sectionsFlag := flag.String("sections", "1,2,3,4", "comma-separated section numbers to refresh")
	userFlag := flag.String("user", "", "refresh a single user instead of everyone")
	timeoutFlag := flag.Duration("timeout", 30*time.Minute, "overall run deadline")
	flag.Parse()

	categories, err := resolveSections(*sectionsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	store, err := kvstore.NewStore(kvstore.FactoryConfig{
		Backend: "redis",
		Redis: kvstore.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	}, log)
	if err != nil {
		log.Fatal("failed to connect to store", zap.Error(err))
	}
	defer store.Close()

	cacheSvc := cache.NewService(store, cache.WithLogger(log))
	defer cacheSvc.Close()

	credVault, err := vault.New(store, cfg.Vault.EncryptionKeyBytes(), vault.WithLogger(log))
	if err != nil {
		log.Fatal("failed to initialize vault", zap.Error(err))
	}

	gateway := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		upstream.WithClientLogger(log))
	queue := notify.NewQueue(store,
		notify.WithMaxLength(cfg.Notifications.MaxQueueLength),
		notify.WithQueueTTL(cfg.Notifications.QueueTTL),
		notify.WithQueueLogger(log),
	)

	orchestrator := buildOrchestrator(cfg, cacheSvc, queue, gateway, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	users := loadUsers(ctx, credVault, *userFlag, log)
	if len(users) == 0 {
		log.Warn("no users to refresh")
		return
	}

	summary := orchestrator.Run(ctx, users, categories)

	for username, statuses := range summary {
		for category, status := range statuses {
			fmt.Printf("%s\t%s\t%s\n", username, category, status)
		}
	}
}

// resolveSections expands the -sections flag into categories.
func resolveSections(raw string) ([]portal.Category, error) {
	var categories []portal.Category
	seen := make(map[portal.Category]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		group, ok := sections[s]
		if !ok {
			return nil, fmt.Errorf("unknown section %q (valid: 1-4)", s)
		}
		for _, c := range group {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no sections selected")
	}
	return categories, nil
}

// loadUsers decrypts the vault into refresh credentials, optionally
// narrowed to one user. Entries that fail to decrypt are skipped.
func loadUsers(ctx context.Context, credVault *vault.Vault, only string, log *zap.Logger) []refresh.User {
	var users []refresh.User
	for _, cred := range credVault.All(ctx) {
		if only != "" && cred.Username != only {
			continue
		}
		if cred.DecryptFailed {
			log.Warn("skipping user with undecryptable credentials",
				zap.String("username", cred.Username))
			continue
		}
		users = append(users, refresh.User{Username: cred.Username, Password: cred.Password})
	}
	return users
}

// buildOrchestrator mirrors the server wiring minus the HTTP layer.
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
