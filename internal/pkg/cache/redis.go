// Package cache provides the Redis-backed distributed lease used to keep
// the unverified-payment sweep single-flight across replicas.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

type redisLease struct {
	client      *redis.Client
	serviceName string
}

// NewRedisLease connects to Redis at addr. Keys are namespaced by service
// name so several deployments can share one instance.
func NewRedisLease(addr, serviceName string) ports.Lease {
	return &redisLease{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

func (r *redisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.namespaced(key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", key, err)
	}
	return ok, nil
}

func (r *redisLease) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("release lease %q: %w", key, err)
	}
	return nil
}

func (r *redisLease) namespaced(key string) string {
	return fmt.Sprintf("%s:lease:%s", r.serviceName, key)
}
