package rates

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"inventario/internal/storage"
)

// FallbackRate is returned when every cache tier and upstream source fails.
// Callers cannot distinguish it from a fetched rate.
const FallbackRate = 1450.0

// Service resolves the ARS-per-USD rate for a calendar date.
type Service struct {
	cache      *Cache
	today      Source
	historical []Source
	now        func() time.Time
	group      singleflight.Group
}

// New wires the service against the real HTTP sources.
func New(kv storage.KV, client *http.Client) *Service {
	sources := NewHTTPSources(client)
	return &Service{
		cache:      NewCache(kv),
		today:      sources.Today,
		historical: []Source{sources.BCRAHistorical, sources.ArgentinaDatos},
		now:        time.Now,
	}
}

// NewWithSources builds a service with explicit sources and clock, used by
// tests and by callers that stub the upstreams.
func NewWithSources(cache *Cache, today Source, historical []Source, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	cache.now = now
	return &Service{cache: cache, today: today, historical: historical, now: now}
}

// RateForDate resolves a rate for the given YYYY-MM-DD date. It never fails:
// cache, then sources, then today's rate for dates with no history, then the
// constant fallback. Concurrent lookups for the same date are collapsed into
// one resolution.
func (s *Service) RateForDate(ctx context.Context, date string) float64 {
	v, _, _ := s.group.Do(date, func() (any, error) {
		return s.resolve(ctx, date), nil
	})
	return v.(float64)
}

// PurgeCache drops every cached rate. Exposed for the self-healing policy:
// when a consumed rate is implausibly low, the caller purges and retries once.
func (s *Service) PurgeCache(ctx context.Context) {
	s.cache.PurgeAll(ctx)
}

func (s *Service) resolve(ctx context.Context, date string) float64 {
	today := s.now().Format("2006-01-02")

	if rate, ok := s.cache.Get(ctx, date, today); ok {
		slog.DebugContext(ctx, "Exchange rate from cache", "date", date, "rate", rate)
		return rate
	}

	if rate, ok := s.fetch(ctx, date, today); ok {
		s.cache.Set(ctx, date, rate)
		slog.InfoContext(ctx, "Exchange rate fetched", "date", date, "rate", rate)
		return rate
	}

	if date == today {
		slog.WarnContext(ctx, "Exchange rate fallback", "date", date, "rate", FallbackRate)
		return FallbackRate
	}

	// No historical quotation exists for this date; use the current rate.
	// The recursion is bounded: the retried date equals today, and the branch
	// above terminates that case.
	slog.InfoContext(ctx, "No historical rate, using current", "date", date)
	return s.resolve(ctx, today)
}

func (s *Service) fetch(ctx context.Context, date, today string) (float64, bool) {
	if date == today {
		if s.today == nil {
			return 0, false
		}
		return firstSuccess(ctx, date, []Source{s.today})
	}
	return firstSuccess(ctx, date, s.historical)
}
