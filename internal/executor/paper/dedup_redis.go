package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDedupPrefix = "daybot:dedup:"

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisDedup shares the dedup window across processes. Keys expire after the
// window, so Redis handles pruning.
type RedisDedup struct {
	rdb    setNXer
	window time.Duration
}

func NewRedisDedup(rdb *redis.Client, window time.Duration) *RedisDedup {
	return newRedisDedup(rdb, window)
}

func newRedisDedup(rdb setNXer, window time.Duration) *RedisDedup {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &RedisDedup{rdb: rdb, window: window}
}

func (d *RedisDedup) Seen(ctx context.Context, key string, now time.Time) (bool, error) {
	created, err := d.rdb.SetNX(ctx, redisDedupPrefix+key, now.UnixMilli(), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis dedup %s: %w", key, err)
	}
	return !created, nil
}
