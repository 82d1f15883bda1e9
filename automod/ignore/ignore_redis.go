package ignore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisIgnorePrefix = "ignore/"

// RedisRegistry shares the suppression set across processes. Expiry is
// enforced by redis key TTLs; GETDEL makes consumption atomic.
type RedisRegistry struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisRegistry(redisURL string, ttl time.Duration) (*RedisRegistry, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisRegistry{Client: rdb, TTL: ttl}, nil
}

func (r *RedisRegistry) Add(ctx context.Context, category, id string) error {
	return r.Client.Set(ctx, redisIgnorePrefix+entryKey(category, id), "1", r.TTL).Err()
}

func (r *RedisRegistry) CheckAndConsume(ctx context.Context, category, id string) (bool, error) {
	_, err := r.Client.GetDel(ctx, redisIgnorePrefix+entryKey(category, id)).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}
