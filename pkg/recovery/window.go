package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowStore holds the process-wide rate-limit cooldown window: a single
// resume-after timestamp. While "now" is before that timestamp, retries for
// rate-limited failures are refused regardless of per-resource attempt
// counts. The window clears implicitly once the timestamp elapses.
type WindowStore interface {
	// Activate sets the resume-after timestamp.
	Activate(ctx context.Context, resumeAt time.Time) error

	// ResumeAt returns the current resume-after timestamp. ok is false
	// when no window has ever been set.
	ResumeAt(ctx context.Context) (resumeAt time.Time, ok bool, err error)
}

// MemoryWindow is the default in-process WindowStore.
type MemoryWindow struct {
	mu       sync.Mutex
	resumeAt time.Time
}

// NewMemoryWindow creates an in-process window store.
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{}
}

// Activate sets the resume-after timestamp.
func (w *MemoryWindow) Activate(_ context.Context, resumeAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resumeAt = resumeAt
	return nil
}

// ResumeAt returns the stored resume-after timestamp.
func (w *MemoryWindow) ResumeAt(_ context.Context) (time.Time, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resumeAt.IsZero() {
		return time.Time{}, false, nil
	}
	return w.resumeAt, true, nil
}

// redisKeyResumeAt stores the shared cooldown window for multi-worker hosts.
const redisKeyResumeAt = "embed:rate_limit:resume_at"

// RedisWindow shares the cooldown window across workers via Redis. The key
// carries a TTL matching the window, so an elapsed window disappears on its
// own.
type RedisWindow struct {
	redis *redis.Client
}

// NewRedisWindow creates a Redis-backed window store.
func NewRedisWindow(redisClient *redis.Client) *RedisWindow {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisWindow{redis: redisClient}
}

// Activate stores the resume-after timestamp with a TTL that expires with
// the window itself.
func (w *RedisWindow) Activate(ctx context.Context, resumeAt time.Time) error {
	ttl := time.Until(resumeAt)
	if ttl <= 0 {
		return nil
	}
	if err := w.redis.Set(ctx, redisKeyResumeAt, resumeAt.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit window in redis: %w", err)
	}
	return nil
}

// ResumeAt reads the shared resume-after timestamp.
func (w *RedisWindow) ResumeAt(ctx context.Context) (time.Time, bool, error) {
	millis, err := w.redis.Get(ctx, redisKeyResumeAt).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read rate limit window from redis: %w", err)
	}
	return time.UnixMilli(millis), true, nil
}
