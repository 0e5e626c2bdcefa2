package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Client wraps the shared redis connection. The rate-limit counter
// store builds directly on the underlying client; the wrapper exists so
// components that only need get/set do not see the full redis API.
type Client struct {
	client  *redis.Client
	ttlMaps map[string]*TTLMap
}

func NewClient(cfg Config) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{
		client:  client,
		ttlMaps: make(map[string]*TTLMap),
	}, nil
}

func (c *Client) Redis() *redis.Client {
	return c.client
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// CreateTTLMap registers a named local TTL map on the client.
func (c *Client) CreateTTLMap(name string, ttl time.Duration) *TTLMap {
	m := NewTTLMap(ttl)
	c.ttlMaps[name] = m
	return m
}

func (c *Client) GetTTLMap(name string) *TTLMap {
	return c.ttlMaps[name]
}
