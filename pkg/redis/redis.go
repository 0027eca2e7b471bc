// Package redis wires up the Redis client backing the code pool and the
// resolution cache.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type Option func(*goredis.Options)

func WithPassword(password string) Option {
	return func(opts *goredis.Options) {
		opts.Password = password
	}
}

func WithDB(db int) Option {
	return func(opts *goredis.Options) {
		opts.DB = db
	}
}

func WithPoolSize(n int) Option {
	return func(opts *goredis.Options) {
		opts.PoolSize = n
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(opts *goredis.Options) {
		opts.DialTimeout = d
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(opts *goredis.Options) {
		opts.ReadTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(opts *goredis.Options) {
		opts.WriteTimeout = d
	}
}

// New connects to the Redis instance at addr and verifies the connection.
func New(ctx context.Context, addr string, opts ...Option) (*goredis.Client, error) {
	const op = "redis.New"

	options := &goredis.Options{Addr: addr}
	for _, opt := range opts {
		opt(options)
	}

	client := goredis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
