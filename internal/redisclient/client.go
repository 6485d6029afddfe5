// Package redisclient caches rendered invoice documents. Invoices are
// immutable once issued, so cached bytes are valid for the whole TTL.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(addr, password string, db, ttlSeconds int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb: rdb,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func documentKey(key string) string {
	return fmt.Sprintf("invoice:document:%s", key)
}

// GetDocument returns the cached document bytes, or (nil, nil) on a miss.
func (c *Client) GetDocument(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, documentKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetDocument caches the rendered document with the configured TTL.
func (c *Client) SetDocument(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, documentKey(key), data, c.ttl).Err()
}
