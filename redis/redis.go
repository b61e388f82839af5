// Package redis stores crawl sessions in Redis so several pagewalk processes
// can share them.
package redis

import (
	"context"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "pagewalk:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key. Defaults to DefaultPrefix.
	Prefix string

	// TTL expires stored sessions. Zero keeps them forever.
	TTL time.Duration
}

// Client wraps a Redis connection.
type Client struct {
	client *redisv8.Client
	prefix string
	ttl    time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Client, error) {
	c := redisv8.NewClient(&redisv8.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{client: c, prefix: prefix, ttl: opts.TTL}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) sessionKey(id string) string {
	return c.prefix + "session:" + id
}

func (c *Client) indexKey() string {
	return c.prefix + "sessions"
}
