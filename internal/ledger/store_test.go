package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"inventario/internal/core"
	"inventario/internal/storage"
)

type stubResolver struct {
	rates  []float64 // consumed in order; last value repeats
	calls  int
	purges int
}

func (r *stubResolver) RateForDate(_ context.Context, _ string) float64 {
	idx := r.calls
	if idx >= len(r.rates) {
		idx = len(r.rates) - 1
	}
	r.calls++
	return r.rates[idx]
}

func (r *stubResolver) PurgeCache(_ context.Context) { r.purges++ }

func fptr(v float64) *float64 { return &v }

func testClock() time.Time {
	return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T, resolver *stubResolver) (*Store, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	suggestions := NewSuggestionStore(context.Background(), kv)
	store := NewStore(context.Background(), kv, resolver, suggestions, WithClock(testClock))
	return store, kv
}

func TestStore_Create(t *testing.T) {
	resolver := &stubResolver{rates: []float64{900}}
	store, kv := newTestStore(t, resolver)

	tx, err := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Purchase,
		ProductName: "Rice",
		Quantity:    10,
		UnitPrice:   fptr(500),
		Date:        "2024-05-01",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if tx.ID == "" {
		t.Error("Create() assigned no id")
	}
	if tx.TotalValue != 5000 {
		t.Errorf("TotalValue = %v, want 5000", tx.TotalValue)
	}
	if tx.ExchangeRate == nil || *tx.ExchangeRate != 900 {
		t.Errorf("ExchangeRate = %v, want 900", tx.ExchangeRate)
	}
	if resolver.purges != 0 {
		t.Errorf("cache purged %d times for a plausible rate, want 0", resolver.purges)
	}

	// The full collection snapshot must be persisted.
	raw, ok, _ := kv.Get(context.Background(), "inventory_transactions")
	if !ok {
		t.Fatal("transactions snapshot not persisted")
	}
	var persisted []core.Transaction
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("unmarshal persisted snapshot: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ID != tx.ID {
		t.Errorf("persisted snapshot = %+v, want the created transaction", persisted)
	}
}

func TestStore_Create_Validation(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	tests := []struct {
		name    string
		draft   core.TransactionDraft
		wantErr error
	}{
		{
			name:    "empty product name",
			draft:   core.TransactionDraft{Type: core.Sale, Quantity: 1, Date: "2024-05-01"},
			wantErr: core.ErrEmptyProductName,
		},
		{
			name:    "non-positive quantity",
			draft:   core.TransactionDraft{Type: core.Sale, ProductName: "Soja", Quantity: 0, Date: "2024-05-01"},
			wantErr: core.ErrInvalidQuantity,
		},
		{
			name:    "bad date",
			draft:   core.TransactionDraft{Type: core.Sale, ProductName: "Soja", Quantity: 1, Date: "2024-13-40"},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(context.Background(), tt.draft); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_Create_DefaultsDateToToday(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	tx, err := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Sale,
		ProductName: "Trigo",
		Quantity:    5,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tx.Date != "2024-05-10" {
		t.Errorf("Date = %q, want clock date 2024-05-10", tx.Date)
	}
	if tx.TotalValue != 0 {
		t.Errorf("TotalValue without unit price = %v, want 0", tx.TotalValue)
	}
}

func TestStore_Create_PurgeAndRetryOnImplausibleRate(t *testing.T) {
	// First resolution yields 400 (below floor): the store must purge the
	// cache namespace and resolve once more before stamping.
	resolver := &stubResolver{rates: []float64{400, 1100}}
	store, _ := newTestStore(t, resolver)

	tx, err := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Purchase,
		ProductName: "Girasol",
		Quantity:    2,
		UnitPrice:   fptr(1000),
		Date:        "2024-05-01",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if resolver.purges != 1 {
		t.Errorf("purges = %d, want 1", resolver.purges)
	}
	if resolver.calls != 2 {
		t.Errorf("rate resolutions = %d, want 2", resolver.calls)
	}
	if tx.ExchangeRate == nil || *tx.ExchangeRate != 1100 {
		t.Errorf("ExchangeRate = %v, want retried 1100", tx.ExchangeRate)
	}
}

func TestStore_Create_RecordsSuggestions(t *testing.T) {
	store, kv := newTestStore(t, &stubResolver{rates: []float64{900}})

	_, err := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Purchase,
		ProductType: "Cereal",
		ProductName: "Maíz",
		Quantity:    1,
		Date:        "2024-05-01",
		Notes:       "pago contado",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	suggestions := NewSuggestionStore(context.Background(), kv)
	if got := suggestions.List(ProductTypes); len(got) != 1 || got[0] != "Cereal" {
		t.Errorf("productTypes = %v, want [Cereal]", got)
	}
	if got := suggestions.List(ProductNames); len(got) != 1 || got[0] != "Maíz" {
		t.Errorf("productNames = %v, want [Maíz]", got)
	}
	if got := suggestions.List(NoteTexts); len(got) != 1 || got[0] != "pago contado" {
		t.Errorf("notes = %v, want [pago contado]", got)
	}
}

func TestStore_Update_RecomputesTotalKeepsRate(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	tx, err := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Purchase,
		ProductName: "Rice",
		Quantity:    10,
		UnitPrice:   fptr(500),
		Date:        "2024-05-01",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	store.Update(context.Background(), tx.ID, core.TransactionPatch{Quantity: fptr(20)})

	got, ok := store.Get(tx.ID)
	if !ok {
		t.Fatal("transaction vanished after update")
	}
	if got.TotalValue != 10000 {
		t.Errorf("TotalValue = %v, want 10000", got.TotalValue)
	}
	if got.ExchangeRate == nil || *got.ExchangeRate != 900 {
		t.Errorf("ExchangeRate = %v, want unchanged 900", got.ExchangeRate)
	}
}

func TestStore_Update_NonMonetaryFieldKeepsTotal(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	tx, _ := store.Create(context.Background(), core.TransactionDraft{
		Type:        core.Sale,
		ProductName: "Soja",
		Quantity:    4,
		UnitPrice:   fptr(250),
		Date:        "2024-05-02",
	})

	notes := "entrega parcial"
	store.Update(context.Background(), tx.ID, core.TransactionPatch{Notes: &notes})

	got, _ := store.Get(tx.ID)
	if got.TotalValue != 1000 {
		t.Errorf("TotalValue = %v, want untouched 1000", got.TotalValue)
	}
	if got.Notes != notes {
		t.Errorf("Notes = %q, want %q", got.Notes, notes)
	}
}

func TestStore_Update_UnknownIDIsNoop(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})
	store.Update(context.Background(), "no-such-id", core.TransactionPatch{Quantity: fptr(1)})
	if got := len(store.All()); got != 0 {
		t.Errorf("collection size = %d after no-op update, want 0", got)
	}
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	tx, _ := store.Create(context.Background(), core.TransactionDraft{
		Type: core.Sale, ProductName: "Trigo", Quantity: 1, Date: "2024-05-03",
	})

	store.Delete(context.Background(), tx.ID)
	if _, ok := store.Get(tx.ID); ok {
		t.Error("transaction still present after delete")
	}

	// Unknown id must be a silent no-op.
	store.Delete(context.Background(), "no-such-id")
}

func TestStore_ListByMonth(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	dates := []string{"2024-03-15", "2024-03-01", "2024-04-01", "2023-03-10"}
	for _, d := range dates {
		if _, err := store.Create(context.Background(), core.TransactionDraft{
			Type: core.Sale, ProductName: "Maíz", Quantity: 1, Date: d,
		}); err != nil {
			t.Fatalf("Create(%s) error = %v", d, err)
		}
	}

	got := store.ListByMonth("2024-03")
	if len(got) != 2 {
		t.Fatalf("ListByMonth(2024-03) returned %d transactions, want 2", len(got))
	}
	// Insertion order, not chronological.
	if got[0].Date != "2024-03-15" || got[1].Date != "2024-03-01" {
		t.Errorf("ListByMonth order = [%s %s], want insertion order", got[0].Date, got[1].Date)
	}
}

func TestStore_SummaryForMonth(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	entries := []struct {
		typ   core.TransactionType
		price float64
	}{
		{core.Purchase, 1000},
		{core.Purchase, 500},
		{core.Sale, 2500},
	}
	for _, e := range entries {
		price := e.price
		if _, err := store.Create(context.Background(), core.TransactionDraft{
			Type: e.typ, ProductName: "Maíz", Quantity: 1, UnitPrice: &price, Date: "2024-03-10",
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got := store.SummaryForMonth("2024-03")
	want := core.MonthlySummary{
		Month:            "03",
		Year:             2024,
		TotalPurchases:   1500,
		TotalSales:       2500,
		GrossMargin:      1000,
		TransactionCount: 3,
	}
	if got != want {
		t.Errorf("SummaryForMonth() = %+v, want %+v", got, want)
	}
}

func TestStore_AvailableMonths(t *testing.T) {
	store, _ := newTestStore(t, &stubResolver{rates: []float64{900}})

	for _, d := range []string{"2024-01-15", "2023-11-02", "2024-01-20"} {
		if _, err := store.Create(context.Background(), core.TransactionDraft{
			Type: core.Sale, ProductName: "Soja", Quantity: 1, Date: d,
		}); err != nil {
			t.Fatalf("Create(%s) error = %v", d, err)
		}
	}

	got := store.AvailableMonths()
	// Clock month 2024-05 is always included; order is most recent first.
	want := []string{"2024-05", "2024-01", "2023-11"}
	if len(got) != len(want) {
		t.Fatalf("AvailableMonths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AvailableMonths() = %v, want %v", got, want)
		}
	}
}

func TestStore_CorruptSnapshotLoadsEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	if err := kv.Set(context.Background(), "inventory_transactions", []byte("{broken")); err != nil {
		t.Fatalf("seed corrupt snapshot: %v", err)
	}

	store := NewStore(context.Background(), kv, &stubResolver{rates: []float64{900}},
		NewSuggestionStore(context.Background(), kv), WithClock(testClock))
	if got := len(store.All()); got != 0 {
		t.Errorf("loaded %d transactions from corrupt snapshot, want 0", got)
	}
}
