package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker is a short-lived mutual exclusion keyed by string. Lock does not block:
// ok is false when somebody else holds the key.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// unlockScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by another claimer is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lock:"}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	const op = "utils.RedisLocker.Lock"

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	const op = "utils.RedisLocker.Unlock"

	if err := unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MemoryLocker is an in-process Locker for single-node runs and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	clock Clock
}

type memoryLease struct {
	token     string
	expiresAt time.Time
}

func NewMemoryLocker(clock Clock) *MemoryLocker {
	if clock == nil {
		clock = RealClock{}
	}
	return &MemoryLocker{held: make(map[string]memoryLease), clock: clock}
}

func (l *MemoryLocker) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if lease, ok := l.held[key]; ok && lease.expiresAt.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = memoryLease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, ok := l.held[key]; ok && lease.token == token {
		delete(l.held, key)
	}
	return nil
}
