package memory

import (
	"context"
	"sync"
	"time"
)

const defaultSessionTTL = 30 * 24 * time.Hour

type item struct {
	val string
	exp time.Time
}

// Client is an in-process SessionStore for -dev runs and tests.
type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
}

func New() *Client {
	return &Client{sessions: make(map[string]item)}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{val: userID, exp: time.Now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}
