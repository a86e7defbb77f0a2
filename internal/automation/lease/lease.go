package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lease.
var ErrNotAcquired = errors.New("lease held by another run")

// Locker grants exclusive, expiring leases keyed by pipeline id.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	// Release is a no-op when the lease already expired or changed hands.
	Release(ctx context.Context, key, token string) error
}

const keyPrefix = "pipeline:lease:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{keyPrefix + key}, token).Err()
}

type entry struct {
	token   string
	expires time.Time
}

// MemoryLocker is a single-process Locker.
type MemoryLocker struct {
	now func() time.Time

	mu     sync.Mutex
	leases map[string]entry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{now: time.Now, leases: make(map[string]entry)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return "", ErrNotAcquired
	}
	token := uuid.NewString()
	l.leases[key] = entry{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.leases[key]; ok && held.token == token {
		delete(l.leases, key)
	}
	return nil
}
