package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const captureLockPrefix = "order_capture:"

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-taken by another caller is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl}
}

// LockCapture takes the per-order capture lock. It returns false when another
// capture for the same order holds it.
func (r *Redis) LockCapture(ctx context.Context, orderID, token string) (bool, error) {
	return r.Client.SetNX(ctx, captureLockPrefix+orderID, token, r.TTL).Result()
}

func (r *Redis) UnlockCapture(ctx context.Context, orderID, token string) error {
	err := unlockScript.Run(ctx, r.Client, []string{captureLockPrefix + orderID}, token).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
