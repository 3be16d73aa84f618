package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed attempts per key inside a fixed window and
// blocks the key for a lockout period once the limit is reached.
type AttemptLimiter struct {
	rdb     *redis.Client
	prefix  string
	window  time.Duration
	max     int
	lockout time.Duration
}

func NewAttemptLimiter(rdb *redis.Client, prefix string, max int, window, lockout time.Duration) *AttemptLimiter {
	return &AttemptLimiter{rdb: rdb, prefix: prefix, window: window, max: max, lockout: lockout}
}

func (l *AttemptLimiter) countKey(key string) string {
	return fmt.Sprintf("%s:count:%s", l.prefix, key)
}
func (l *AttemptLimiter) blockKey(key string) string {
	return fmt.Sprintf("%s:block:%s", l.prefix, key)
}

// Blocked reports whether key is locked out.
func (l *AttemptLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.blockKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Fail records one failed attempt and reports whether it locked the key out.
func (l *AttemptLimiter) Fail(ctx context.Context, key string) (bool, error) {
	ck := l.countKey(key)
	// the window starts with the first failure and is never extended
	pipe := l.rdb.TxPipeline()
	pipe.SetNX(ctx, ck, 0, l.window)
	incr := pipe.Incr(ctx, ck)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	n := incr.Val()
	if int(n) < l.max {
		return false, nil
	}

	pipe = l.rdb.TxPipeline()
	pipe.Set(ctx, l.blockKey(key), "1", l.lockout)
	pipe.Del(ctx, ck)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reset clears the failure count after a successful attempt.
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.countKey(key)).Err()
}
