// Package price maintains a reference BNB/USD price used for quoting. It
// polls a chain of public sources and keeps serving the last good value when
// all of them fail.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/parivision/bridgebet/internal/config"
	"github.com/parivision/bridgebet/internal/domain"
)

// Cache persists the last fetched price across restarts. Implementations
// live in the store packages; a nil Cache disables persistence.
type Cache interface {
	SetPrice(ctx context.Context, symbol string, price float64) error
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// source fetches a BNB/USD quote from one provider.
type source struct {
	name  string
	url   string
	parse func([]byte) (float64, error)
}

// Oracle serves the current BNB/USD reference price. Sources are tried in
// order on every refresh; the first success wins.
type Oracle struct {
	http    *http.Client
	sources []source
	cache   Cache
	refresh time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	price     float64
	updatedAt time.Time
	live      bool // false until the first successful fetch
}

// NewOracle builds an Oracle from config. cache may be nil.
func NewOracle(cfg config.PriceConfig, cache Cache, logger *slog.Logger) *Oracle {
	return &Oracle{
		http:    &http.Client{Timeout: 30 * time.Second},
		refresh: cfg.RefreshInterval.Duration,
		cache:   cache,
		logger:  logger.With(slog.String("component", "price_oracle")),
		price:   cfg.FallbackUSD,
		sources: []source{
			{name: "coingecko", url: cfg.CoinGeckoURL, parse: parseCoinGecko},
			{name: "binance", url: cfg.BinanceURL, parse: parseBinance},
			{name: "coincap", url: cfg.CoinCapURL, parse: parseCoinCap},
		},
	}
}

// Price returns the current BNB/USD price and whether it came from a live
// fetch (as opposed to the configured fallback or a stale cache).
func (o *Oracle) Price() (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.price, o.live
}

// UpdatedAt returns when the price was last refreshed successfully, zero if
// never.
func (o *Oracle) UpdatedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.updatedAt
}

// Refresh tries each source in order and stores the first successful quote.
// It returns an error only when every source failed; the previous price
// stays in place in that case.
func (o *Oracle) Refresh(ctx context.Context) error {
	var lastErr error
	for _, src := range o.sources {
		if src.url == "" {
			continue
		}
		price, err := o.fetch(ctx, src)
		if err != nil {
			o.logger.Debug("price source failed",
				slog.String("source", src.name),
				slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		o.set(price)
		if o.cache != nil {
			if err := o.cache.SetPrice(ctx, "BNBUSD", price); err != nil {
				o.logger.Warn("price cache write failed", slog.String("error", err.Error()))
			}
		}
		return nil
	}
	if lastErr == nil {
		lastErr = domain.ErrQuoteUnavailable
	}
	return fmt.Errorf("price: all sources failed: %w", lastErr)
}

// Run refreshes the price on a fixed interval until ctx is cancelled,
// publishing each update on the bus. Before the first fetch it seeds the
// price from the cache when one is available.
func (o *Oracle) Run(ctx context.Context, bus domain.SignalBus) error {
	if o.cache != nil {
		if cached, err := o.cache.GetPrice(ctx, "BNBUSD"); err == nil && cached > 0 {
			o.set(cached)
			o.mu.Lock()
			o.live = false // cached, not live
			o.mu.Unlock()
		}
	}

	ticker := time.NewTicker(o.refresh)
	defer ticker.Stop()

	for {
		if err := o.Refresh(ctx); err != nil {
			o.logger.Warn("price refresh failed, keeping last value",
				slog.String("error", err.Error()))
		} else if bus != nil {
			price, _ := o.Price()
			bus.Publish(ctx, domain.Signal{
				Channel: "price.bnb_usd",
				Payload: map[string]any{"price": price},
				At:      time.Now(),
			})
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ----- Internal helpers -----

func (o *Oracle) set(price float64) {
	o.mu.Lock()
	o.price = price
	o.updatedAt = time.Now()
	o.live = true
	o.mu.Unlock()
}

func (o *Oracle) fetch(ctx context.Context, src source) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, err
	}
	price, err := src.parse(body)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %f", price)
	}
	return price, nil
}

// parseCoinGecko handles {"binancecoin":{"usd":612.34}}.
func parseCoinGecko(body []byte) (float64, error) {
	var out map[string]map[string]float64
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, err
	}
	price, ok := out["binancecoin"]["usd"]
	if !ok {
		return 0, fmt.Errorf("missing binancecoin.usd field")
	}
	return price, nil
}

// parseBinance handles {"symbol":"BNBUSDT","price":"612.34"}.
func parseBinance(body []byte) (float64, error) {
	var out struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Price, 64)
}

// parseCoinCap handles {"data":{"priceUsd":"612.34"}}.
func parseCoinCap(body []byte) (float64, error) {
	var out struct {
		Data struct {
			PriceUSD string `json:"priceUsd"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Data.PriceUSD, 64)
}
