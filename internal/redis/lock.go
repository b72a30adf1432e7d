package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("practitioner schedule lock not acquired")
)

// Locker serializes schedule mutations per practitioner so that the conflict
// check and the following write run as one unit.
type Locker interface {
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}

const (
	minAcquireBackoff = 10 * time.Millisecond
	maxAcquireBackoff = 200 * time.Millisecond
)

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisScheduleLocker creates a locker that uses a per practitioner Redis
// key. A busy key is retried with backoff for up to wait; a non-positive wait
// makes a single attempt.
func NewRedisScheduleLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(practitionerID uuid.UUID) string {
	return fmt.Sprintf("lock:practitioner:%s", practitionerID.String())
}

func (l *redisScheduleLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(practitionerID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// released on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisScheduleLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	backoff := minAcquireBackoff

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire schedule lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(backoff).After(deadline) {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxAcquireBackoff {
			backoff = maxAcquireBackoff
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}

// LocalLocker runs fn directly. Used where Redis is not wired (tools, tests);
// the exclusion constraint in Postgres still rejects overlapping writes.
type LocalLocker struct{}

func (LocalLocker) WithPractitionerLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
