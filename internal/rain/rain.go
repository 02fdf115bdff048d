// Package rain tracks precipitation entries, one measurement per calendar
// date. The collection persists as a single JSON snapshot, same scheme as the
// transaction ledger.
package rain

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventario/internal/core"
	"inventario/internal/storage"
)

const entriesKey = "@precipitations_v1"

// Entry is one precipitation measurement.
type Entry struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"` // YYYY-MM-DD
	MM        float64 `json:"mm"`
	CreatedAt string  `json:"createdAt"`
}

// Store owns the precipitation collection.
type Store struct {
	mu      sync.Mutex
	kv      storage.KV
	now     func() time.Time
	entries []Entry
}

// NewStore loads the persisted entries; missing or corrupt payloads load as
// an empty collection.
func NewStore(ctx context.Context, kv storage.KV) *Store {
	s := &Store{kv: kv, now: time.Now}

	raw, ok, err := kv.Get(ctx, entriesKey)
	if err != nil {
		slog.WarnContext(ctx, "Precipitations load failed, starting empty", "error", err)
		return s
	}
	if !ok {
		return s
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		slog.WarnContext(ctx, "Precipitations payload corrupt, starting empty", "error", err)
		return s
	}
	s.entries = entries
	return s
}

// WithClock overrides the clock, used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Upsert records mm of rainfall for a date. An existing entry for the same
// date is replaced in place; otherwise a new entry is appended.
func (s *Store) Upsert(ctx context.Context, date string, mm float64) (Entry, error) {
	if !core.ValidISODate(date) {
		return Entry{}, core.ErrInvalidDate
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Date:      date,
		MM:        mm,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	replaced := false
	for i := range s.entries {
		if s.entries[i].Date == date {
			s.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.entries = append(s.entries, entry)
	}
	s.persist(ctx)
	s.mu.Unlock()

	slog.InfoContext(ctx, "Precipitation recorded", "date", date, "mm", mm, "replaced", replaced)
	return entry, nil
}

// Delete removes the entry with the given id; unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	filtered := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	s.entries = filtered
	s.persist(ctx)
	s.mu.Unlock()
}

// All returns a copy of the collection.
func (s *Store) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry{}, s.entries...)
}

// MonthlyTotals sums mm per month of the given year, twelve values, January
// first. Entries outside the year or with malformed dates are ignored.
func MonthlyTotals(entries []Entry, year string) [12]float64 {
	var totals [12]float64
	for _, e := range entries {
		// Imported backups restore this payload verbatim, so a malformed
		// date can reach here and must not panic the aggregation.
		if !core.ValidISODate(e.Date) {
			continue
		}
		if core.YearKey(e.Date) != year {
			continue
		}
		month, err := strconv.Atoi(e.Date[5:7])
		if err != nil || month < 1 || month > 12 {
			continue
		}
		totals[month-1] += e.MM
	}
	return totals
}

// Years returns the distinct years present in the entries.
func Years(entries []Entry) []string {
	seen := map[string]struct{}{}
	for _, e := range entries {
		if y := core.YearKey(e.Date); y != "" {
			seen[y] = struct{}{}
		}
	}
	years := make([]string, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	return years
}

func (s *Store) persist(ctx context.Context) {
	snapshot := s.entries
	if snapshot == nil {
		snapshot = []Entry{}
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		slog.ErrorContext(ctx, "Precipitations marshal failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, entriesKey, raw); err != nil {
		slog.ErrorContext(ctx, "Precipitations persist failed", "error", err)
	}
}
