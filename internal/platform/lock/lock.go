// Package lock provides short-lived mutual exclusion keyed by string, either
// in process or across workers through Redis.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the key.
var ErrLockHeld = errors.New("lock: key held by another owner")

// Release frees a lock obtained from Acquire.
type Release func(ctx context.Context) error

// Locker acquires exclusive, expiring locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Local is an in-process Locker used by single-node deployments and tests.
type Local struct {
	mu    sync.Mutex
	held  map[string]localHold
	clock func() time.Time
}

type localHold struct {
	token   string
	expires time.Time
}

// NewLocal constructs an empty Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]localHold), clock: time.Now}
}

// Acquire implements Locker.
func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrLockHeld
	}
	token := uuid.NewString()
	l.held[key] = localHold{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}
