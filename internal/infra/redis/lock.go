package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"pdf-conversion-billing/internal/domain"
)

// Locker hands out single-holder leases. The token fences the release so an
// expired holder cannot delete a lease the next holder owns.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

// TryLock makes a single attempt. Contention surfaces as
// domain.ErrConverterBusy; retry policy belongs to the caller.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return "", domain.ErrConverterBusy
	}
	return token, nil
}

// releaseScript deletes the lease only while this token still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.cli, []string{key}, token).Err()
}
