// Package redis provides the Redis client component.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	redisopts "github.com/kart-io/databridge/pkg/options/redis"
)

// Client wraps the go-redis client.
type Client struct {
	client *goredis.Client
	opts   *redisopts.Options
}

// New creates a new Redis client and verifies connectivity.
func New(ctx context.Context, opts *redisopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options is nil")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{
		client: rdb,
		opts:   opts,
	}, nil
}

// Ping checks whether the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Raw returns the underlying go-redis client.
func (c *Client) Raw() *goredis.Client {
	return c.client
}
