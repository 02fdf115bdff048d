// Package ledger owns the transaction collection: create, update and delete
// with derived-field recomputation, month-keyed queries and summary
// aggregation. The in-memory collection is the source of truth; every
// mutation rewrites the whole JSON snapshot to the KV store as a side effect.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventario/internal/core"
	"inventario/internal/rates"
	"inventario/internal/storage"
)

const transactionsKey = "inventory_transactions"

// RateResolver is the slice of the exchange-rate service the store consumes
// when stamping new transactions.
type RateResolver interface {
	RateForDate(ctx context.Context, date string) float64
	PurgeCache(ctx context.Context)
}

// EventPublisher is notified after each successful mutation so downstream
// consumers (backup worker, sheets push) can react. Publish failures must
// never fail the mutation.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, action, id string) error
}

type Store struct {
	mu           sync.Mutex
	kv           storage.KV
	rates        RateResolver
	suggestions  *SuggestionStore
	publisher    EventPublisher
	now          func() time.Time
	transactions []core.Transaction
}

// Option configures optional collaborators of the store.
type Option func(*Store)

// WithPublisher attaches a mutation-event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithClock overrides the clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore loads the persisted collection. Missing or corrupt payloads load
// as an empty collection rather than failing.
func NewStore(ctx context.Context, kv storage.KV, resolver RateResolver, suggestions *SuggestionStore, opts ...Option) *Store {
	s := &Store{
		kv:          kv,
		rates:       resolver,
		suggestions: suggestions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, ok, err := kv.Get(ctx, transactionsKey)
	if err != nil {
		slog.WarnContext(ctx, "Transactions load failed, starting empty", "error", err)
		return s
	}
	if !ok {
		return s
	}
	var transactions []core.Transaction
	if err := json.Unmarshal(raw, &transactions); err != nil {
		slog.WarnContext(ctx, "Transactions payload corrupt, starting empty", "error", err)
		return s
	}
	s.transactions = transactions
	slog.InfoContext(ctx, "Transactions loaded", "count", len(transactions))
	return s
}

// Create validates the draft, stamps id, total value and exchange rate, and
// appends the transaction. When the resolved rate is below the sanity floor
// the whole rate cache is purged and resolution retried once before the rate
// is accepted as-is.
func (s *Store) Create(ctx context.Context, draft core.TransactionDraft) (core.Transaction, error) {
	if draft.Date == "" {
		draft.Date = s.now().Format("2006-01-02")
	}
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}

	rate := s.rates.RateForDate(ctx, draft.Date)
	if rate < rates.MinPlausibleRate {
		slog.WarnContext(ctx, "Resolved rate below sanity floor, purging cache and retrying",
			"date", draft.Date, "rate", rate)
		s.rates.PurgeCache(ctx)
		rate = s.rates.RateForDate(ctx, draft.Date)
	}

	tx := core.Transaction{
		ID:           uuid.NewString(),
		Type:         draft.Type,
		ProductType:  draft.ProductType,
		ProductName:  draft.ProductName,
		Quantity:     draft.Quantity,
		UnitPrice:    draft.UnitPrice,
		TotalValue:   core.TotalValue(draft.Quantity, draft.UnitPrice),
		Date:         draft.Date,
		Notes:        draft.Notes,
		ExchangeRate: &rate,
	}

	s.mu.Lock()
	s.transactions = append(s.transactions, tx)
	s.persist(ctx)
	s.mu.Unlock()

	s.recordSuggestions(ctx, tx)
	s.publish(ctx, "created", tx.ID)

	slog.InfoContext(ctx, "Transaction created",
		"id", tx.ID, "product", tx.ProductName, "type", tx.Type,
		"total_ars", tx.TotalValue, "exchange_rate", rate)
	return tx, nil
}

// Update merges the patch into the matching transaction. Unknown ids are a
// silent no-op. The total value is recomputed when quantity or unit price
// changed; the exchange-rate snapshot is never touched.
func (s *Store) Update(ctx context.Context, id string, patch core.TransactionPatch) {
	s.mu.Lock()
	var updated *core.Transaction
	for i := range s.transactions {
		if s.transactions[i].ID != id {
			continue
		}
		t := &s.transactions[i]
		if patch.Type != nil {
			t.Type = *patch.Type
		}
		if patch.ProductType != nil {
			t.ProductType = *patch.ProductType
		}
		if patch.ProductName != nil {
			t.ProductName = *patch.ProductName
		}
		if patch.Date != nil {
			t.Date = *patch.Date
		}
		if patch.Notes != nil {
			t.Notes = *patch.Notes
		}
		if patch.Quantity != nil || patch.UnitPrice != nil {
			if patch.Quantity != nil {
				t.Quantity = *patch.Quantity
			}
			if patch.UnitPrice != nil {
				t.UnitPrice = patch.UnitPrice
			}
			t.TotalValue = core.TotalValue(t.Quantity, t.UnitPrice)
		}
		copied := *t
		updated = &copied
		break
	}
	if updated != nil {
		s.persist(ctx)
	}
	s.mu.Unlock()

	if updated == nil {
		slog.WarnContext(ctx, "Update for unknown transaction ignored", "id", id)
		return
	}

	s.recordSuggestions(ctx, *updated)
	s.publish(ctx, "updated", id)
	slog.InfoContext(ctx, "Transaction updated", "id", id)
}

// Delete removes the matching transaction; unknown ids are a silent no-op.
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	found := false
	filtered := s.transactions[:0]
	for _, t := range s.transactions {
		if t.ID == id {
			found = true
			continue
		}
		filtered = append(filtered, t)
	}
	s.transactions = filtered
	if found {
		s.persist(ctx)
	}
	s.mu.Unlock()

	if !found {
		slog.WarnContext(ctx, "Delete for unknown transaction ignored", "id", id)
		return
	}
	s.publish(ctx, "deleted", id)
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
}

// Get returns a copy of the transaction with the given id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// All returns a copy of the whole collection in insertion order.
func (s *Store) All() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction{}, s.transactions...)
}

// ListByMonth returns the transactions whose date falls in the YYYY-MM month
// key, in insertion order. Callers sort explicitly when they need
// chronological order.
func (s *Store) ListByMonth(monthKey string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Transaction{}
	for _, t := range s.transactions {
		if core.MonthKey(t.Date) == monthKey {
			out = append(out, t)
		}
	}
	return out
}

// SummaryForMonth aggregates totals and the gross margin for one month.
func (s *Store) SummaryForMonth(monthKey string) core.MonthlySummary {
	transactions := s.ListByMonth(monthKey)

	summary := core.MonthlySummary{TransactionCount: len(transactions)}
	if year, _, err := core.MonthKeyParts(monthKey); err == nil {
		summary.Year = year
		summary.Month = monthKey[5:7]
	}

	for _, t := range transactions {
		switch t.Type {
		case core.Purchase:
			summary.TotalPurchases += t.TotalValue
		case core.Sale:
			summary.TotalSales += t.TotalValue
		}
	}
	summary.GrossMargin = summary.TotalSales - summary.TotalPurchases
	return summary
}

// AvailableMonths returns every month key present in the collection plus the
// current calendar month, most recent first.
func (s *Store) AvailableMonths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{
		s.now().Format("2006-01"): {},
	}
	for _, t := range s.transactions {
		if key := core.MonthKey(t.Date); key != "" {
			seen[key] = struct{}{}
		}
	}

	months := make([]string, 0, len(seen))
	for key := range seen {
		months = append(months, key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// persist rewrites the whole collection snapshot. The in-memory state is
// already updated; a failed write only costs durability, so it is logged and
// swallowed. Callers must hold s.mu.
func (s *Store) persist(ctx context.Context) {
	snapshot := s.transactions
	if snapshot == nil {
		snapshot = []core.Transaction{}
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		slog.ErrorContext(ctx, "Transactions marshal failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, transactionsKey, raw); err != nil {
		slog.ErrorContext(ctx, "Transactions persist failed", "error", err)
	}
}

func (s *Store) recordSuggestions(ctx context.Context, t core.Transaction) {
	if s.suggestions == nil {
		return
	}
	s.suggestions.Record(ctx, ProductTypes, t.ProductType)
	s.suggestions.Record(ctx, ProductNames, t.ProductName)
	s.suggestions.Record(ctx, NoteTexts, t.Notes)
}

func (s *Store) publish(ctx context.Context, action, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, action, id); err != nil {
		slog.ErrorContext(ctx, "Ledger event publish failed",
			"action", action, "id", id, "error", err)
	}
}
