package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is applied when the caller passes a non-positive TTL.
const DefaultSessionTTL = 30 * 24 * time.Hour

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return c.cli.Set(ctx, "session:"+token, userID, ttl).Err()
}

// GetSession returns the user id for a token, or "" when the token is unknown
// or expired (not an error: the caller answers 401).
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}
