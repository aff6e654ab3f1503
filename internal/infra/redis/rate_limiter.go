package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter counts hits per key in fixed windows. The first hit of a
// window creates the counter with the window as its TTL; expiry resets it.
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// windowScript bumps the counter and stamps the TTL in one round trip, so a
// crash between the two steps can never leave an immortal key behind.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`)

// Allow reports whether key still has capacity in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := windowScript.Run(ctx, r.client.cli, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}

// UploadKey buckets upload throttling by client address.
func UploadKey(ip string) string {
	return "ratelimit:upload:" + ip
}
