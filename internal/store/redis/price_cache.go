package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parivision/bridgebet/internal/domain"
	"github.com/parivision/bridgebet/internal/price"
)

// PriceCache persists the last fetched reference price so a restart can
// quote before the first oracle refresh completes. Each symbol is a hash at
// "bridgebet:price:{symbol}" with fields "price" and "ts".
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(symbol string) string {
	return "bridgebet:price:" + symbol
}

// SetPrice stores the latest price and timestamp for a symbol.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, value float64) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(value, 'f', -1, 64),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice retrieves the latest price for a symbol. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, symbol string) (float64, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(symbol)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, domain.ErrNotFound
	}
	value, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	return value, nil
}

// Compile-time interface check.
var _ price.Cache = (*PriceCache)(nil)
