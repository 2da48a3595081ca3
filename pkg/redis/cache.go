package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under a namespaced key
// ⭐ SSOT: cache helpers live only here
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache helper; keys become "<prefix>:cache:<key>"
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, k)
}

// Get decodes a cached value into dest and reports whether it was found
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// Clear removes every value under the cache prefix and returns how many were deleted
func (c *Cache) Clear(ctx context.Context) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	rdb := c.client.Redis()
	deleted := 0
	iter := rdb.Scan(ctx, 0, c.key("*"), 500).Iterator()
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rdb.Del(ctx, batch...).Result()
		deleted += int(n)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, fmt.Errorf("cache clear %s: %w", c.prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache scan %s: %w", c.prefix, err)
	}
	if err := flush(); err != nil {
		return deleted, fmt.Errorf("cache clear %s: %w", c.prefix, err)
	}
	return deleted, nil
}

// Predefined TTLs
const (
	TTLIntraday = 15 * time.Minute // live plan inputs
	TTLDaily    = 24 * time.Hour   // EOD bars, constituent lists
)

// BarsKey identifies a symbol's bars over a date range
func BarsKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("bars:%s:%s:%s", strings.ToUpper(symbol), start.Format("20060102"), end.Format("20060102"))
}

// UniverseKey identifies an index constituent list for a day
func UniverseKey(universe string, day time.Time) string {
	return fmt.Sprintf("universe:%s:%s", strings.ToLower(universe), day.Format("20060102"))
}

// SurveillanceKey identifies the ASM/GSM/ESM exclusion set for a day
func SurveillanceKey(day time.Time) string {
	return fmt.Sprintf("surveillance:%s", day.Format("20060102"))
}
