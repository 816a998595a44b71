// Package refresh coordinates periodic portal scraping: it fans out
// over users and categories under bounded concurrency, classifies
// every fetch outcome, feeds change detection, and keeps one failure
// from poisoning anything else in the run.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/application/notify"
	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/cache"
)

// Config bounds a refresh run.
type Config struct {
	// MaxConcurrentUsers caps users being refreshed at once.
	MaxConcurrentUsers int
	// MaxConcurrentFetches caps category fetches per user.
	MaxConcurrentFetches int
	// MaxConcurrentCourses caps course-content downloads per user.
	MaxConcurrentCourses int
	// FetchTimeout bounds a single category fetch.
	FetchTimeout time.Duration
	// RetryAttempts and RetryDelay govern course-content retries.
	RetryAttempts uint
	RetryDelay    time.Duration
}

// DefaultConfig returns the production concurrency bounds.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentUsers:   10,
		MaxConcurrentFetches: 5,
		MaxConcurrentCourses: 4,
		FetchTimeout:         30 * time.Second,
		RetryAttempts:        3,
		RetryDelay:           5 * time.Second,
	}
}

// User is one credential pair to refresh.
type User struct {
	Username string
	Password string
}

// Summary maps username to per-category status. Every requested
// (user, category) pair is present, whatever happened to it.
type Summary map[string]map[string]string

// Status strings for a (user, category) pair.
const (
	StatusUpdated   = "updated"
	statusCancelled = "failed: cancelled"
)

// cancelledStatuses marks every requested category as cancelled, so a
// cut-short run still reports each pair.
func cancelledStatuses(categories []portal.Category) map[string]string {
	statuses := make(map[string]string, len(categories))
	for _, c := range categories {
		statuses[c.String()] = statusCancelled
	}
	return statuses
}

// CategorySpec wires one category into the orchestrator.
type CategorySpec struct {
	// Fetcher retrieves the snapshot.
	Fetcher portal.Fetcher
	// TTL is the cache lifetime of a fresh snapshot.
	TTL time.Duration
	// Detector, when set, compares old and new snapshots and its
	// findings are queued for the user.
	Detector notify.Detector
	// PostProcess, when set, reshapes the fetched value before
	// caching and comparison.
	PostProcess func(value any) (any, error)
	// HashPair stores the snapshot with a fingerprint companion so
	// clients can poll for changes cheaply.
	HashPair bool
}

// Orchestrator runs refresh cycles.
type Orchestrator struct {
	cache      *cache.Service
	queue      *notify.Queue
	categories map[portal.Category]CategorySpec
	content    *ContentSyncer
	cfg        Config
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator. Categories and the content
// syncer are registered separately.
func NewOrchestrator(cacheSvc *cache.Service, queue *notify.Queue, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentUsers <= 0 {
		cfg.MaxConcurrentUsers = DefaultConfig().MaxConcurrentUsers
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultConfig().MaxConcurrentFetches
	}
	if cfg.MaxConcurrentCourses <= 0 {
		cfg.MaxConcurrentCourses = DefaultConfig().MaxConcurrentCourses
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	return &Orchestrator{
		cache:      cacheSvc,
		queue:      queue,
		categories: make(map[portal.Category]CategorySpec),
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterCategory wires a category fetcher into refresh runs.
func (o *Orchestrator) RegisterCategory(category portal.Category, spec CategorySpec) {
	o.categories[category] = spec
}

// RegisterContentSyncer wires the per-course content fan-out.
func (o *Orchestrator) RegisterContentSyncer(s *ContentSyncer) {
	o.content = s
}

// Run refreshes the given categories for every user and returns a
// status for each (user, category) pair. At most MaxConcurrentUsers
// users are in flight at once, and at most MaxConcurrentFetches
// categories per user. Failures are contained: a user or category
// that blows up only marks its own summary entry.
func (o *Orchestrator) Run(ctx context.Context, users []User, categories []portal.Category) Summary {
	if len(categories) == 0 {
		categories = portal.AllCategories()
	}

	started := time.Now()
	o.logger.Info("refresh run starting",
		zap.Int("users", len(users)),
		zap.Int("categories", len(categories)))

	summary := make(Summary, len(users))
	var mu sync.Mutex
	var wg sync.WaitGroup
	userSem := make(chan struct{}, o.cfg.MaxConcurrentUsers)
	run := newRunState()

	for _, user := range users {
		wg.Add(1)
		go func(u User) {
			defer wg.Done()

			var statuses map[string]string
			select {
			case userSem <- struct{}{}:
				statuses = o.refreshUser(ctx, u, categories, run)
				<-userSem
			case <-ctx.Done():
				statuses = cancelledStatuses(categories)
			}

			mu.Lock()
			summary[u.Username] = statuses
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	o.logger.Info("refresh run finished",
		zap.Int("users", len(users)),
		zap.Duration("elapsed", time.Since(started)))
	return summary
}

// refreshUser refreshes one user's categories. Content runs first and
// alone so its course fan-out gets the full per-user budget, then the
// remaining categories run concurrently.
func (o *Orchestrator) refreshUser(ctx context.Context, u User, categories []portal.Category, run *runState) map[string]string {
	statuses := make(map[string]string, len(categories))
	var mu sync.Mutex

	wantContent := false
	var rest []portal.Category
	for _, c := range categories {
		if c == portal.CategoryContent {
			wantContent = true
			continue
		}
		rest = append(rest, c)
	}

	if wantContent {
		if o.content == nil {
			statuses[portal.CategoryContent.String()] = "skipped: no content syncer registered"
		} else {
			statuses[portal.CategoryContent.String()] = o.content.Sync(ctx, u, run)
		}
	}

	var wg sync.WaitGroup
	fetchSem := make(chan struct{}, o.cfg.MaxConcurrentFetches)
	for _, category := range rest {
		spec, ok := o.categories[category]
		if !ok {
			statuses[category.String()] = "skipped: no fetcher registered"
			continue
		}

		wg.Add(1)
		go func(category portal.Category, spec CategorySpec) {
			defer wg.Done()

			var status string
			select {
			case fetchSem <- struct{}{}:
				status = o.refreshCategory(ctx, u, category, spec, run)
				<-fetchSem
			case <-ctx.Done():
				status = statusCancelled
			}

			mu.Lock()
			statuses[category.String()] = status
			mu.Unlock()
		}(category, spec)
	}
	wg.Wait()

	return statuses
}

// refreshCategory fetches, classifies, detects changes and caches one
// (user, category) pair. It always produces a status; panics inside a
// fetcher are contained here.
func (o *Orchestrator) refreshCategory(ctx context.Context, u User, category portal.Category, spec CategorySpec, run *runState) (status string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("fetcher panicked",
				zap.String("username", u.Username),
				zap.String("category", category.String()),
				zap.Any("panic", r))
			status = "failed: fetcher panic"
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	result := spec.Fetcher.Fetch(fetchCtx, u.Username, u.Password)

	switch result.Outcome {
	case portal.FetchSoftError:
		reason := result.Reason
		if reason == "" {
			reason = "fetcher declined"
		}
		return "skipped: " + reason
	case portal.FetchHardFailure:
		if fetchCtx.Err() != nil {
			return "failed: timed out"
		}
		return "skipped: fetcher returned nothing"
	}

	value := result.Value
	if spec.PostProcess != nil {
		processed, err := spec.PostProcess(value)
		if err != nil {
			o.logger.Warn("post-processing failed",
				zap.String("username", u.Username),
				zap.String("category", category.String()),
				zap.Error(err))
			return "failed: post-processing: " + err.Error()
		}
		value = processed
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "failed: snapshot not encodable"
	}

	key := cache.Key(category, u.Username)
	o.detectChanges(ctx, u.Username, key, raw, spec, run)

	var stored bool
	if spec.HashPair {
		stored = o.cache.SetWithHash(ctx, key, json.RawMessage(raw), spec.TTL)
	} else {
		stored = o.cache.SetRaw(ctx, key, raw, spec.TTL)
	}
	if !stored {
		return "failed: cache write failed"
	}
	return StatusUpdated
}

// detectChanges diffs the new snapshot against the cached one and
// queues anything novel. Notification problems never fail the
// refresh; the snapshot still gets cached.
func (o *Orchestrator) detectChanges(ctx context.Context, username, key string, newRaw []byte, spec CategorySpec, run *runState) {
	if spec.Detector == nil || o.queue == nil {
		return
	}

	oldKey := key
	if spec.HashPair {
		oldKey = cache.DataKey(key)
	}
	oldRaw, found := o.cache.GetRaw(ctx, oldKey)
	if !found {
		oldRaw = nil
	}

	for _, n := range spec.Detector.Detect(oldRaw, newRaw) {
		if !run.markNotified(username, n.Description) {
			continue
		}
		if o.queue.Add(ctx, username, n) {
			o.logger.Info("notification queued",
				zap.String("username", username),
				zap.String("type", n.Type))
		}
	}
}

// runState is shared across one Run call: the per-user set of already
// queued descriptions and the cross-user course download ledger.
type runState struct {
	mu       sync.Mutex
	notified map[string]map[string]struct{}
	courses  map[string]string // normalized URL -> final status
}

func newRunState() *runState {
	return &runState{
		notified: make(map[string]map[string]struct{}),
		courses:  make(map[string]string),
	}
}

// markNotified records a description for a user and reports whether
// it was new in this run.
func (r *runState) markNotified(username, description string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen, ok := r.notified[username]
	if !ok {
		seen = make(map[string]struct{})
		r.notified[username] = seen
	}
	if _, dup := seen[description]; dup {
		return false
	}
	seen[description] = struct{}{}
	return true
}

// claimCourse marks url as being handled by the calling goroutine.
// The second return is false when another worker already claimed it,
// along with that worker's status if it finished.
func (r *runState) claimCourse(url string) (prior string, claimed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status, done := r.courses[url]; done {
		return status, false
	}
	r.courses[url] = courseInFlight
	return "", true
}

// finishCourse records the final status for a claimed url.
func (r *runState) finishCourse(url, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[url] = status
}

const courseInFlight = "in-flight"

// String renders a summary for logs.
func (s Summary) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%v", map[string]map[string]string(s))
	}
	return string(raw)
}
