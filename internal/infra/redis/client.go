package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection shared by dispatch statistics.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"` // expiry of per-minute buckets
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	prefix := strings.Trim(cfg.Prefix, ":")
	if prefix == "" {
		prefix = "wacloud"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Client{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) totalKey() string {
	return c.prefix + ":dispatch:total"
}

func (c *Client) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:dispatch:minute:%s", c.prefix, at.UTC().Format("200601021504"))
}

func (c *Client) opKey() string {
	return c.prefix + ":dispatch:op"
}

func (c *Client) failuresKey() string {
	return c.prefix + ":dispatch:failures"
}
