// Package rates resolves the official ARS-per-USD exchange rate for a
// calendar date. Resolution is tiered: per-date cache, live or historical
// sources, retry with today's date, constant fallback. It never returns an
// error to callers; the worst observable outcome is the fallback constant.
package rates

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"inventario/internal/storage"
)

const (
	// cacheKeyPrefix namespaces the per-date cache entries in the KV store.
	// The prefix is part of the backup payload contract and must not change.
	cacheKeyPrefix = "bna_exchange_rate_"

	// MinPlausibleRate is the sanity floor: any rate below it is treated as
	// corrupt data, both when read back from the cache and when offered by a
	// historical source.
	MinPlausibleRate = 500.0

	// freshnessWindow bounds the age of a cached rate for today's date.
	// Historical dates never go stale.
	freshnessWindow = 4 * time.Hour
)

// CachedRate is the stored shape of one per-date cache entry. Timestamp is
// Unix milliseconds, matching the payloads written by earlier app versions.
type CachedRate struct {
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
}

// Cache is the per-date rate cache with the sanity-floor purge policy.
type Cache struct {
	kv  storage.KV
	now func() time.Time
}

func NewCache(kv storage.KV) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Get returns the cached rate for date if it is plausible and, when date is
// today, still fresh. Implausible entries are purged on read so they cannot
// poison later lookups. Storage errors degrade to a miss.
func (c *Cache) Get(ctx context.Context, date, today string) (float64, bool) {
	key := cacheKeyPrefix + date
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Rate cache read failed", "date", date, "error", err)
		return 0, false
	}
	if !ok {
		return 0, false
	}

	var cached CachedRate
	if err := json.Unmarshal(raw, &cached); err != nil {
		slog.WarnContext(ctx, "Rate cache entry corrupt, purging", "date", date, "error", err)
		c.remove(ctx, key)
		return 0, false
	}

	if cached.Rate < MinPlausibleRate {
		slog.WarnContext(ctx, "Rate cache entry below sanity floor, purging",
			"date", date, "rate", cached.Rate)
		c.remove(ctx, key)
		return 0, false
	}

	if date == today {
		age := c.now().Sub(time.UnixMilli(cached.Timestamp))
		if age >= freshnessWindow {
			return 0, false
		}
	}

	return cached.Rate, true
}

// Set writes a freshly fetched rate for date. Write failures are logged and
// swallowed; the caller already has the rate in hand.
func (c *Cache) Set(ctx context.Context, date string, rate float64) {
	entry := CachedRate{
		Rate:      rate,
		Timestamp: c.now().UnixMilli(),
		Date:      date,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		slog.ErrorContext(ctx, "Rate cache marshal failed", "date", date, "error", err)
		return
	}
	if err := c.kv.Set(ctx, cacheKeyPrefix+date, raw); err != nil {
		slog.WarnContext(ctx, "Rate cache write failed", "date", date, "error", err)
	}
}

// PurgeAll removes the whole rate-cache namespace. Used by the self-healing
// policy when a consumed rate turns out to be implausible.
func (c *Cache) PurgeAll(ctx context.Context) {
	if err := c.kv.DeletePrefix(ctx, cacheKeyPrefix); err != nil {
		slog.WarnContext(ctx, "Rate cache purge failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Rate cache purged")
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.kv.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "Rate cache delete failed", "key", key, "error", err)
	}
}
