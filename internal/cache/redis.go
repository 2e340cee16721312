// ==============================================================================
// REDIS LOCK STORE - internal/cache/redis.go
// ==============================================================================
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLockStore serializes concurrent payment submissions that share an
// idempotency key. SetNX gives first-writer-wins across processes; the TTL
// bounds how long a crashed holder can block retries.
type RedisLockStore struct {
	client *redis.Client
}

func NewRedisLockStore(addr, password string, db int) (*RedisLockStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisLockStore{client: client}, nil
}

func (s *RedisLockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, lockKey(key), "1", ttl).Result()
}

func (s *RedisLockStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockKey(key)).Err()
}

func (s *RedisLockStore) Close() error {
	return s.client.Close()
}

func lockKey(key string) string {
	return "payment:lock:" + key
}
