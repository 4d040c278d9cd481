// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/models"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "underwriting:transaction:"

// Fetcher is the lookup the cache sits in front of.
type Fetcher interface {
	Fetch(ctx context.Context, transactionID string) (models.TransactionProfile, error)
}

// Saver persists a transaction profile.
type Saver interface {
	Save(ctx context.Context, tx models.TransactionProfile) error
}

// Cache is the subset of database.RedisClient the read-through cache uses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedFetcher serves transactions from Redis and falls back to next on a
// miss. Cache errors degrade to a direct lookup.
type CachedFetcher struct {
	next   Fetcher
	cache  Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedFetcher(next Fetcher, cache Cache, ttl time.Duration, log logger.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Component(log, "transaction-cache"),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, transactionID string) (models.TransactionProfile, error) {
	key := keyPrefix + transactionID

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var tx models.TransactionProfile
		if jsonErr := json.Unmarshal(raw, &tx); jsonErr == nil {
			return tx, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
	}

	tx, err := c.next.Fetch(ctx, transactionID)
	if err != nil {
		return models.TransactionProfile{}, err
	}

	if data, err := json.Marshal(tx); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return tx, nil
}

// Invalidate drops the cached copy of a transaction.
func (c *CachedFetcher) Invalidate(ctx context.Context, transactionID string) error {
	return c.cache.Del(ctx, keyPrefix+transactionID)
}

// Save writes tx through to the underlying store and drops the cached copy,
// so the next Fetch reads the new version.
func (c *CachedFetcher) Save(ctx context.Context, tx models.TransactionProfile) error {
	saver, ok := c.next.(Saver)
	if !ok {
		return fmt.Errorf("transaction store %T does not support saving", c.next)
	}
	if err := saver.Save(ctx, tx); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, tx.ID); err != nil {
		c.logger.Error("cache invalidation failed after save", map[string]interface{}{
			"transactionId": tx.ID,
			"error":         err,
		})
		return fmt.Errorf("invalidate cached transaction %s: %w", tx.ID, err)
	}
	return nil
}
