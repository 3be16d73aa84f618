package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// idempEntry is an in-progress marker until the handler finishes, then the
// response to replay.
type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	Key         string    `json:"key"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e idempEntry) replayable() bool { return !e.InProgress && e.Code != 0 && len(e.Body) > 0 }

// idempStore holds one entry per scoped key.
type idempStore struct {
	rdb *redis.Client
	// lock bounds how long an unfinished request blocks its key.
	lock time.Duration
	ttl  time.Duration
}

// claim stores e only if the key is free.
func (s idempStore) claim(ctx context.Context, key string, e idempEntry) (bool, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, key, payload, s.lock).Result()
}

// load reports found=false when the key expired between claim and load.
func (s idempStore) load(ctx context.Context, key string) (idempEntry, bool, error) {
	var e idempEntry
	v, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, false, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return e, true, nil
}

func (s idempStore) finish(ctx context.Context, key string, e idempEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, s.ttl).Err()
}

// release frees the key so a failed request can be retried with it.
func (s idempStore) release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
