package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// authRedis 是登录防护与刷新令牌吊销所需的 Redis 子集，*redis.Client 直接满足。
type authRedis interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// incrWithTTL 自增计数器并保证其带有过期时间。
// 首次创建时设置 TTL；若之前的 Expire 丢失（TTL 为 -1），在此补上，避免计数器永久存在。
func incrWithTTL(ctx context.Context, client authRedis, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		return count, client.Expire(ctx, key, ttl).Err()
	}
	if current, err := client.TTL(ctx, key).Result(); err == nil && current < 0 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
