package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/topiclab/topicbot/internal/domain"
)

const (
	marketKeyPrefix  = "market:"
	defaultMarketTTL = 10 * time.Minute
)

// MarketCache implements domain.MarketCache as JSON values under market:<id>
// keys with a TTL. The cache is read-through only; Postgres stays the source
// of truth.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given client.
func NewMarketCache(client *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = defaultMarketTTL
	}
	return &MarketCache{rdb: client.RDB(), ttl: ttl}
}

// Set caches a market.
func (c *MarketCache) Set(ctx context.Context, market domain.Market) error {
	payload, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	if err := c.rdb.Set(ctx, marketKeyPrefix+market.ID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns a cached market, or domain.ErrNotFound on a miss.
func (c *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	payload, err := c.rdb.Get(ctx, marketKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(payload, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// Invalidate removes a market from the cache.
func (c *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, marketKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}
