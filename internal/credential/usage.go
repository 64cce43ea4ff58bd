package credential

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// usageRecordTimeout bounds the Redis round trip so accounting can never
// stall credential resolution.
const usageRecordTimeout = 2 * time.Second

// RedisUsage records credential usage counters in Redis, keyed by
// source, provider and model. Counters are day-bucketed so downstream
// reporting can expire them with a TTL instead of process-wide state.
type RedisUsage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUsage creates a usage recorder. ttl controls how long a day
// bucket survives after its last write; zero disables expiry.
func NewRedisUsage(client *redis.Client, ttl time.Duration) *RedisUsage {
	return &RedisUsage{client: client, ttl: ttl}
}

// Record increments the counter for (source, provider, model).
func (u *RedisUsage) Record(ctx context.Context, source Source, provider, model string) error {
	ctx, cancel := context.WithTimeout(ctx, usageRecordTimeout)
	defer cancel()

	day := time.Now().UTC().Format("2006-01-02")
	key := "usage:" + day + ":" + string(source) + ":" + provider + ":" + model

	if err := u.client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	if u.ttl > 0 {
		return u.client.Expire(ctx, key, u.ttl).Err()
	}
	return nil
}
