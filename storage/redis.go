package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InitializeRedis connects to the platform's redis and checks it answers
func InitializeRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("InitializeRedis: %w", err)
	}

	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("InitializeRedis: %w", err)
	}

	return client, nil
}

// SettingsCache drops the platform's cached merchant settings so a settings write
// is visible to the next payment without waiting for expiry
type SettingsCache struct {
	client *redis.Client
	prefix string
}

// NewSettingsCache returns a SettingsCache over client. A nil client turns it into a no-op.
func NewSettingsCache(client *redis.Client, prefix string) *SettingsCache {
	return &SettingsCache{client: client, prefix: prefix}
}

// Key is the redis key holding a merchant's settings
func (c *SettingsCache) Key(merchantID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, merchantID)
}

// Invalidate removes the cached settings of merchantID
func (c *SettingsCache) Invalidate(ctx context.Context, merchantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.Key(merchantID)).Err(); err != nil {
		return fmt.Errorf("Invalidate: %w", err)
	}
	return nil
}
