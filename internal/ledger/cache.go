package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "servdesk:inbound:processed:"
	cacheTTL       = 24 * time.Hour
)

// Cache is a redis-backed fast path for duplicate detection on recently
// processed provider message ids. It is purely an optimization: entries
// expire, redis may be down, and the ledger falls back to the database in
// both cases.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client. Returns nil for a nil client so callers can
// wire the cache unconditionally.
func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

// Get returns the cached ticket id for a processed message id.
func (c *Cache) Get(ctx context.Context, providerMessageID string) (int64, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+providerMessageID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	ticketID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return ticketID, true, nil
}

// Set records a processed message id with its resulting ticket.
func (c *Cache) Set(ctx context.Context, providerMessageID string, ticketID int64) error {
	return c.client.Set(ctx, cacheKeyPrefix+providerMessageID, strconv.FormatInt(ticketID, 10), cacheTTL).Err()
}
