// Package lock serializes concurrent operations on the same slot, case or
// participant key.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks by key. The returned release func is safe
// to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func SlotKey(date, tm string) string { return "slot:" + date + ":" + tm }

func CaseKey(caseID int64) string { return fmt.Sprintf("case:%d", caseID) }

func MeetingKey(caseID int64) string { return fmt.Sprintf("meeting:%d", caseID) }

func JoinKey(meetingID int64, userType string, userID int64) string {
	return fmt.Sprintf("join:%d:%s:%d", meetingID, userType, userID)
}

// RedisLocker is a single-instance redis lock (SET NX PX + compare-and-delete).
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: "trial_scheduler:lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Acquire blocks until the key is free or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, ErrNotAcquired, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// отпускаем даже если исходный ctx уже отменён
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{fullKey}, token).Err()
		})
	}, nil
}

// LocalLocker is an in-process keyed mutex used when redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		ch, held := l.locks[key]
		if !held {
			ch = make(chan struct{})
			l.locks[key] = ch
			l.mu.Unlock()
			break
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, ErrNotAcquired, ctx.Err())
		case <-ch:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			ch := l.locks[key]
			delete(l.locks, key)
			l.mu.Unlock()
			close(ch)
		})
	}, nil
}
