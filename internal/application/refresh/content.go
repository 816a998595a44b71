package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/cache"
)

// errCourseDeclined marks a soft per-course failure that retrying
// cannot fix.
var errCourseDeclined = errors.New("course page declined")

// ContentSyncer downloads per-course content bundles. Bundles are
// cached globally by normalized course URL, so a course shared by
// many users is downloaded once per run.
type ContentSyncer struct {
	cache   *cache.Service
	lister  portal.CourseLister
	fetcher portal.ContentFetcher
	ttl     time.Duration
	cfg     Config
	logger  *zap.Logger
}

// NewContentSyncer creates a content syncer. ttl is the cache
// lifetime of a course bundle.
func NewContentSyncer(cacheSvc *cache.Service, lister portal.CourseLister, fetcher portal.ContentFetcher, ttl time.Duration, cfg Config, logger *zap.Logger) *ContentSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentCourses <= 0 {
		cfg.MaxConcurrentCourses = DefaultConfig().MaxConcurrentCourses
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = DefaultConfig().RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	return &ContentSyncer{
		cache:   cacheSvc,
		lister:  lister,
		fetcher: fetcher,
		ttl:     ttl,
		cfg:     cfg,
		logger:  logger,
	}
}

// Sync refreshes every course visible to u and returns a composite
// status of the form "updated=N, skipped=N, failed=N". Courses
// already handled earlier in the run count as skipped.
func (s *ContentSyncer) Sync(ctx context.Context, u User, run *runState) string {
	courses, err := s.lister.ListCourses(ctx, u.Username, u.Password)
	if err != nil {
		s.logger.Warn("course listing failed",
			zap.String("username", u.Username),
			zap.Error(err))
		return "failed: course list unavailable"
	}
	if len(courses) == 0 {
		return "skipped: no courses"
	}

	var updated, skipped, failed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	courseSem := make(chan struct{}, s.cfg.MaxConcurrentCourses)

	for _, course := range courses {
		wg.Add(1)
		go func(course portal.CourseRef) {
			defer wg.Done()
			courseSem <- struct{}{}
			defer func() { <-courseSem }()

			outcome := s.syncCourse(ctx, u, course, run)

			mu.Lock()
			switch outcome {
			case StatusUpdated:
				updated++
			case "skipped":
				skipped++
			default:
				failed++
			}
			mu.Unlock()
		}(course)
	}
	wg.Wait()

	return fmt.Sprintf("updated=%d, skipped=%d, failed=%d", updated, skipped, failed)
}

// syncCourse downloads one course bundle, with retries for transport
// failures, and caches it when it carries something worth keeping.
func (s *ContentSyncer) syncCourse(ctx context.Context, u User, course portal.CourseRef, run *runState) string {
	courseURL, err := normalizeCourseURL(course.URL)
	if err != nil {
		s.logger.Warn("skipping course with unusable url",
			zap.String("course", course.Name),
			zap.String("url", course.URL),
			zap.Error(err))
		return "failed"
	}

	// One download per course per run, whoever gets there first.
	if _, claimed := run.claimCourse(courseURL); !claimed {
		return "skipped"
	}

	var bundle portal.CourseContent
	err = retry.Do(
		func() error {
			fetched, err := s.fetchCourse(ctx, u, courseURL)
			if err != nil {
				return err
			}
			bundle = fetched
			return nil
		},
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("retrying course download",
				zap.String("url", courseURL),
				zap.Uint("attempt", n),
				zap.Error(err))
		}),
	)
	if err != nil {
		s.logger.Warn("course download failed",
			zap.String("course", course.Name),
			zap.String("url", courseURL),
			zap.Error(err))
		run.finishCourse(courseURL, "failed")
		return "failed"
	}

	key := cache.GlobalKey(portal.CategoryContent, courseURL)

	// An empty bundle from a flaky page must not clobber a cached one.
	// With nothing cached yet even a minimal bundle is kept.
	if !substantial(bundle) {
		if _, cached := s.cache.GetRaw(ctx, key); cached {
			run.finishCourse(courseURL, "skipped")
			return "skipped"
		}
	}

	if !s.cache.Set(ctx, key, bundle, s.ttl) {
		run.finishCourse(courseURL, "failed")
		return "failed"
	}
	run.finishCourse(courseURL, StatusUpdated)
	return StatusUpdated
}

// fetchCourse pulls the content list and the course announcement in
// parallel. A hard failure on the content side is retryable; a soft
// decline is not.
func (s *ContentSyncer) fetchCourse(ctx context.Context, u User, courseURL string) (portal.CourseContent, error) {
	var bundle portal.CourseContent
	var contentRes, announcementRes portal.FetchResult

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		contentRes = s.fetcher.FetchContent(ctx, u.Username, u.Password, courseURL)
	}()
	go func() {
		defer wg.Done()
		announcementRes = s.fetcher.FetchAnnouncement(ctx, u.Username, u.Password, courseURL)
	}()
	wg.Wait()

	switch contentRes.Outcome {
	case portal.FetchSuccess:
		if err := decodeValue(contentRes.Value, &bundle.Items); err != nil {
			return bundle, retry.Unrecoverable(fmt.Errorf("content payload not decodable: %w", err))
		}
	case portal.FetchSoftError:
		return bundle, retry.Unrecoverable(fmt.Errorf("%w: %s", errCourseDeclined, contentRes.Reason))
	case portal.FetchHardFailure:
		// A successful announcement still makes the course worth
		// caching; fail only when both sides came back empty.
		if announcementRes.Outcome != portal.FetchSuccess {
			return bundle, fmt.Errorf("content fetch returned nothing for %s", courseURL)
		}
	}

	// The announcement is best effort: its absence never fails the
	// course.
	if announcementRes.Outcome == portal.FetchSuccess {
		if text, ok := announcementRes.Value.(string); ok {
			bundle.Announcement = text
		}
	}

	return bundle, nil
}

// substantial reports whether a bundle carries anything worth caching.
func substantial(bundle portal.CourseContent) bool {
	return len(bundle.Items) > 0 || bundle.Announcement != ""
}

// decodeValue converts a fetched value into dest, accepting either
// the concrete type or anything JSON-shaped like it.
func decodeValue(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
