package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis implements Store on redis, JSON-encoding values. Same role as the
// memcached backend; which one is used is a deployment choice.
type Redis[T any] struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis store against addr (e.g. "localhost:6379").
func NewRedis[T any](addr, password, prefix string, db int) *Redis[T] {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis[T]{client: client, prefix: prefix}
}

func (c *Redis[T]) key(k string) string {
	return c.prefix + k
}

// Get implements Store.Get. redis.Nil maps to a plain miss.
func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, err
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Set implements Store.Set, letting redis expire the key after ttl.
func (c *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

// Ping checks reachability for health checks.
func (c *Redis[T]) Ping() error {
	return c.client.Ping(context.Background()).Err()
}

// Close closes the client. Call during shutdown.
func (c *Redis[T]) Close() error {
	return c.client.Close()
}
