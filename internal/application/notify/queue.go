package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/kvstore"
)

// Defaults for the notification queue.
const (
	DefaultMaxQueueLength = 2
	DefaultQueueTTL       = 365 * 24 * time.Hour

	queueKeyPrefix = "notifications:"
)

// errDuplicate aborts an enqueue whose description is already queued.
var errDuplicate = errors.New("notification already queued")

// Queue is the per-user notification queue. Entries are kept
// newest-first, capped at a hard maximum, and deduplicated by
// description. Enqueues go through an optimistic transaction; a
// concurrent writer causes the enqueue to be dropped, not retried,
// since the notification will be regenerated on the next refresh.
type Queue struct {
	store  kvstore.Store
	max    int
	ttl    time.Duration
	logger *zap.Logger
}

// QueueOption is a functional option for configuring the queue
type QueueOption func(*Queue)

// WithMaxLength caps the queue length.
func WithMaxLength(max int) QueueOption {
	return func(q *Queue) {
		if max > 0 {
			q.max = max
		}
	}
}

// WithQueueTTL sets the queue key lifetime.
func WithQueueTTL(ttl time.Duration) QueueOption {
	return func(q *Queue) {
		if ttl > 0 {
			q.ttl = ttl
		}
	}
}

// WithQueueLogger sets the logger for the queue
func WithQueueLogger(logger *zap.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// NewQueue creates a notification queue over the given store.
func NewQueue(store kvstore.Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store:  store,
		max:    DefaultMaxQueueLength,
		ttl:    DefaultQueueTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func queueKey(username string) string {
	return queueKeyPrefix + username
}

// Add enqueues a notification for username. Returns true only when
// the notification was actually appended: duplicates, concurrent
// modifications and store failures all report false.
func (q *Queue) Add(ctx context.Context, username string, n portal.Notification) bool {
	err := q.store.Update(ctx, queueKey(username), q.ttl, func(current []byte) ([]byte, error) {
		queue := decodeQueue(current, q.logger)

		for _, existing := range queue {
			if existing.Description == n.Description {
				return nil, errDuplicate
			}
		}

		// Newest first, bounded.
		queue = append([]portal.Notification{n}, queue...)
		if len(queue) > q.max {
			queue = queue[:q.max]
		}
		return json.Marshal(queue)
	})

	switch {
	case err == nil:
		return true
	case errors.Is(err, errDuplicate):
		return false
	case errors.Is(err, kvstore.ErrConflict):
		q.logger.Warn("notification enqueue lost a concurrent update, dropping",
			zap.String("username", username),
			zap.String("description", n.Description))
		return false
	default:
		q.logger.Error("failed to enqueue notification",
			zap.String("username", username),
			zap.Error(err))
		return false
	}
}

// Peek returns the queued notifications, newest first, without
// consuming them.
func (q *Queue) Peek(ctx context.Context, username string) []portal.Notification {
	raw, err := q.store.Get(ctx, queueKey(username))
	if err != nil {
		if !kvstore.IsNotFound(err) {
			q.logger.Warn("failed to read notification queue",
				zap.String("username", username),
				zap.Error(err))
		}
		return []portal.Notification{}
	}
	queue := decodeQueue(raw, q.logger)
	if len(queue) > q.max {
		queue = queue[:q.max]
	}
	return queue
}

// Read returns the queued notifications and resets the queue to
// empty. The emptied key keeps the queue TTL so the user's dedupe
// horizon survives the read.
func (q *Queue) Read(ctx context.Context, username string) []portal.Notification {
	notifications := q.Peek(ctx, username)
	if err := q.store.Set(ctx, queueKey(username), []byte("[]"), q.ttl); err != nil {
		q.logger.Warn("failed to clear notification queue",
			zap.String("username", username),
			zap.Error(err))
	}
	return notifications
}

// decodeQueue tolerates a missing or corrupt queue by starting fresh.
func decodeQueue(raw []byte, logger *zap.Logger) []portal.Notification {
	if raw == nil {
		return []portal.Notification{}
	}
	var queue []portal.Notification
	if err := json.Unmarshal(raw, &queue); err != nil {
		logger.Warn("notification queue is not decodable, resetting", zap.Error(err))
		return []portal.Notification{}
	}
	return queue
}
