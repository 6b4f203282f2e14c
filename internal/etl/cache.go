package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
	"github.com/redis/go-redis/v9"
)

// CachedSource serves repeated fetches for the same params from Redis so
// re-runs inside the TTL do not spend API quota. Cache failures are logged
// and the wrapped source is used instead.
type CachedSource struct {
	Source DataSource
	Client *redis.Client
	TTL    time.Duration
}

func NewCachedSource(src DataSource, client *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{Source: src, Client: client, TTL: ttl}
}

func (c *CachedSource) Name() string { return c.Source.Name() }

func (c *CachedSource) key(params models.FetchParams) string {
	return fmt.Sprintf("marketload:chart:%s:%s:%s:%s:%s",
		c.Source.Name(), params.CoinID, params.VsCurrency, params.Days, params.Interval)
}

func (c *CachedSource) Fetch(ctx context.Context, params models.FetchParams) (*models.RawBatch, error) {
	key := c.key(params)

	value, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var batch models.RawBatch
		if err := json.Unmarshal(value, &batch); err == nil {
			logger.Infof("Serving %d cached observations for %s", len(batch.Rows), key)
			return &batch, nil
		}
		logger.Warnf("Discarding unreadable cache entry %s", key)
	case errors.Is(err, redis.Nil):
		logger.Debugf("Cache miss for %s", key)
	default:
		logger.Warnf("Cache lookup for %s failed: %v", key, err)
	}

	batch, err := c.Source.Fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	if value, err := json.Marshal(batch); err != nil {
		logger.Warnf("Failed to marshal batch for %s: %v", key, err)
	} else if err := c.Client.Set(ctx, key, value, c.TTL).Err(); err != nil {
		logger.Warnf("Failed to cache batch for %s: %v", key, err)
	}
	return batch, nil
}
