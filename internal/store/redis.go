package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

var _ Store = &Redis{}

// Redis is a Store backed by a Redis hash.
type Redis struct {
	Pool *redis.Pool
	Hash string
}

// NewRedis returns a Redis store that keeps all values in the hash at the given address.
func NewRedis(addr string, hash string) *Redis {
	return &Redis{
		Pool: &redis.Pool{
			MaxIdle:     2,
			IdleTimeout: time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
		Hash: hash,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	conn, err := r.Pool.GetContext(ctx)
	if err != nil {
		return "", fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = conn.Close() }()

	value, err := redis.String(conn.Do("HGET", r.Hash, key))
	if errors.Is(err, redis.ErrNil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value string) error {
	conn, err := r.Pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err = conn.Do("HSET", r.Hash, key, value); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}
