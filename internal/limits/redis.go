package limits

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindow is a sliding one-minute window shared across gateway
// instances, kept in a redis sorted set scored by unix nanos.
type RedisWindow struct {
	client *redis.Client
	key    string
}

// NewRedisWindow connects a shared RPM window.
func NewRedisWindow(addr, key string) *RedisWindow {
	if key == "" {
		key = "llmgate:rpm"
	}
	return &RedisWindow{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Allow implements RPMWindow.
func (w *RedisWindow) Allow(ctx context.Context, limit int) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-rpmWindow).UnixNano()

	pipe := w.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, w.key, "0", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(ctx, w.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if count.Val() >= int64(limit) {
		return false, nil
	}
	member := uuid.NewString()
	if err := w.client.ZAdd(ctx, w.key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	}).Err(); err != nil {
		return false, err
	}
	w.client.Expire(ctx, w.key, rpmWindow+time.Second)
	return true, nil
}

// Close releases the redis connection.
func (w *RedisWindow) Close() error { return w.client.Close() }
