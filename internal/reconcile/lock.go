package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Lock guards a reconcile pass so only one instance runs it at a time.
type Lock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// NewLock returns a redis lock shared between instances, or a process-local
// lock when redis is not configured.
func NewLock(client *redis.Client) Lock {
	if client == nil {
		return &localLock{held: map[string]string{}}
	}
	return &RedisLock{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

type RedisLock struct {
	client *redis.Client
	script *redis.Script
}

func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLock) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// localLock ignores ttl; the holder always releases it.
type localLock struct {
	mu   sync.Mutex
	held map[string]string
}

func (l *localLock) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := checkLockArgs(key, ttl); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, true, nil
}

func (l *localLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func checkLockArgs(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return errors.New("lock ttl must be positive")
	}
	return nil
}
