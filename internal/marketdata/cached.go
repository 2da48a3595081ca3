package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/xcelerator/pkg/logger"
	"github.com/wonny/xcelerator/pkg/redis"
)

// Provider fetches bars for a date range
type Provider interface {
	GetPrices(ctx context.Context, symbols []string, start, end time.Time) (map[string]*Series, error)
}

// CachedProvider checks Redis per symbol before asking the upstream provider.
// Cache failures are logged and fall through to the upstream.
type CachedProvider struct {
	upstream Provider
	cache    *redis.Cache
	ttl      time.Duration
	logger   *logger.Logger
}

// NewCachedProvider decorates upstream with a Redis cache
func NewCachedProvider(upstream Provider, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		logger:   log.WithComponent("price-cache"),
	}
}

// GetPrices implements Provider
func (p *CachedProvider) GetPrices(ctx context.Context, symbols []string, start, end time.Time) (map[string]*Series, error) {
	out := make(map[string]*Series, len(symbols))
	var misses []string

	for _, sym := range symbols {
		var s Series
		found, err := p.cache.Get(ctx, redis.BarsKey(sym, start, end), &s)
		if err != nil {
			p.logger.WithError(err).WithField("symbol", sym).Warn("Price cache read failed")
		}
		if found && s.Len() > 0 {
			out[sym] = &s
			continue
		}
		misses = append(misses, sym)
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := p.upstream.GetPrices(ctx, misses, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %d uncached symbols: %w", len(misses), err)
	}

	for sym, s := range fetched {
		out[sym] = s
		if err := p.cache.Set(ctx, redis.BarsKey(sym, start, end), s, p.ttl); err != nil {
			p.logger.WithError(err).WithField("symbol", sym).Warn("Price cache write failed")
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"cached":    len(symbols) - len(misses),
		"fetched":   len(fetched),
	}).Debug("Prices loaded")

	return out, nil
}
