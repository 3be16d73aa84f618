package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, max int) (*AttemptLimiter, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAttemptLimiter(rdb, "approve", max, time.Minute, 10*time.Minute), s
}

func TestAttemptLimiter_BlocksAfterMax(t *testing.T) {
	l, s := newLimiter(t, 3)
	ctx := context.Background()

	for i := 1; i < 3; i++ {
		blocked, err := l.Fail(ctx, "p1:1.2.3.4")
		if err != nil || blocked {
			t.Fatalf("fail #%d: blocked=%v err=%v", i, blocked, err)
		}
		if b, _ := l.Blocked(ctx, "p1:1.2.3.4"); b {
			t.Fatalf("blocked after only %d failures", i)
		}
	}
	blocked, err := l.Fail(ctx, "p1:1.2.3.4")
	if err != nil || !blocked {
		t.Fatalf("third failure: blocked=%v err=%v", blocked, err)
	}
	if b, _ := l.Blocked(ctx, "p1:1.2.3.4"); !b {
		t.Fatalf("expected key to be blocked")
	}
	// other keys are unaffected
	if b, _ := l.Blocked(ctx, "p1:5.6.7.8"); b {
		t.Fatalf("unrelated key blocked")
	}

	if ttl := s.TTL("approve:block:p1:1.2.3.4"); ttl != 10*time.Minute {
		t.Fatalf("lockout ttl = %v", ttl)
	}
	s.FastForward(11 * time.Minute)
	if b, _ := l.Blocked(ctx, "p1:1.2.3.4"); b {
		t.Fatalf("still blocked after lockout")
	}
}

func TestAttemptLimiter_WindowExpires(t *testing.T) {
	l, s := newLimiter(t, 2)
	ctx := context.Background()

	if _, err := l.Fail(ctx, "k"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if ttl := s.TTL("approve:count:k"); ttl != time.Minute {
		t.Fatalf("window ttl = %v", ttl)
	}
	s.FastForward(2 * time.Minute)
	if blocked, err := l.Fail(ctx, "k"); err != nil || blocked {
		t.Fatalf("count should have reset with the window: blocked=%v err=%v", blocked, err)
	}
}

func TestAttemptLimiter_WindowNotExtended(t *testing.T) {
	l, s := newLimiter(t, 5)
	ctx := context.Background()

	if _, err := l.Fail(ctx, "k"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	s.FastForward(20 * time.Second)
	if _, err := l.Fail(ctx, "k"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if ttl := s.TTL("approve:count:k"); ttl != 40*time.Second {
		t.Fatalf("window ttl = %v, want 40s", ttl)
	}
	if got, _ := s.Get("approve:count:k"); got != "2" {
		t.Fatalf("count = %q, want 2", got)
	}
}

func TestAttemptLimiter_Reset(t *testing.T) {
	l, _ := newLimiter(t, 2)
	ctx := context.Background()

	_, _ = l.Fail(ctx, "k")
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if blocked, err := l.Fail(ctx, "k"); err != nil || blocked {
		t.Fatalf("expected fresh count after reset: blocked=%v err=%v", blocked, err)
	}
}

func TestAttemptLimiter_RedisDown(t *testing.T) {
	l, s := newLimiter(t, 2)
	s.Close()
	if _, err := l.Blocked(context.Background(), "k"); err == nil {
		t.Fatalf("expected transport error")
	}
}
