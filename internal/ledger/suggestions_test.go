package ledger

import (
	"context"
	"fmt"
	"testing"

	"inventario/internal/storage"
)

func TestSuggestionStore_RecordPrepends(t *testing.T) {
	s := NewSuggestionStore(context.Background(), storage.NewMemoryKV())

	s.Record(context.Background(), ProductNames, "Maíz")
	s.Record(context.Background(), ProductNames, "Soja")
	s.Record(context.Background(), ProductNames, "Trigo")

	got := s.List(ProductNames)
	want := []string{"Trigo", "Soja", "Maíz"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() = %v, want %v", got, want)
		}
	}
}

func TestSuggestionStore_RepeatKeepsPosition(t *testing.T) {
	s := NewSuggestionStore(context.Background(), storage.NewMemoryKV())

	s.Record(context.Background(), ProductNames, "Maíz")
	s.Record(context.Background(), ProductNames, "Soja")
	s.Record(context.Background(), ProductNames, "Maíz")

	got := s.List(ProductNames)
	if len(got) != 2 || got[0] != "Soja" || got[1] != "Maíz" {
		t.Errorf("List() = %v, want [Soja Maíz] with Maíz not promoted", got)
	}
}

func TestSuggestionStore_Cap(t *testing.T) {
	s := NewSuggestionStore(context.Background(), storage.NewMemoryKV())

	for i := 1; i <= 25; i++ {
		s.Record(context.Background(), NoteTexts, fmt.Sprintf("nota %d", i))
	}

	got := s.List(NoteTexts)
	if len(got) != maxSuggestions {
		t.Fatalf("List() length = %d, want %d", len(got), maxSuggestions)
	}
	if got[0] != "nota 25" {
		t.Errorf("most recent = %q, want %q", got[0], "nota 25")
	}
	if got[len(got)-1] != "nota 6" {
		t.Errorf("oldest kept = %q, want %q", got[len(got)-1], "nota 6")
	}
}

func TestSuggestionStore_IgnoresEmptyValue(t *testing.T) {
	s := NewSuggestionStore(context.Background(), storage.NewMemoryKV())
	s.Record(context.Background(), ProductTypes, "")
	if got := s.List(ProductTypes); len(got) != 0 {
		t.Errorf("List() = %v after recording empty value, want empty", got)
	}
}

func TestSuggestionStore_Remove(t *testing.T) {
	s := NewSuggestionStore(context.Background(), storage.NewMemoryKV())

	s.Record(context.Background(), ProductTypes, "Cereal")
	s.Record(context.Background(), ProductTypes, "Oleaginosa")
	s.Remove(context.Background(), ProductTypes, "Cereal")

	got := s.List(ProductTypes)
	if len(got) != 1 || got[0] != "Oleaginosa" {
		t.Errorf("List() = %v, want [Oleaginosa]", got)
	}

	// Removing an absent value is harmless.
	s.Remove(context.Background(), ProductTypes, "Cereal")
}

func TestSuggestionStore_PersistsAcrossLoads(t *testing.T) {
	kv := storage.NewMemoryKV()

	first := NewSuggestionStore(context.Background(), kv)
	first.Record(context.Background(), ProductNames, "Girasol")
	first.Record(context.Background(), NoteTexts, "flete incluido")

	second := NewSuggestionStore(context.Background(), kv)
	if got := second.List(ProductNames); len(got) != 1 || got[0] != "Girasol" {
		t.Errorf("reloaded productNames = %v, want [Girasol]", got)
	}
	if got := second.List(NoteTexts); len(got) != 1 || got[0] != "flete incluido" {
		t.Errorf("reloaded notes = %v, want [flete incluido]", got)
	}
}

func TestSuggestionStore_CorruptPayloadStartsEmpty(t *testing.T) {
	kv := storage.NewMemoryKV()
	if err := kv.Set(context.Background(), suggestionsKey, []byte("{nope")); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}

	s := NewSuggestionStore(context.Background(), kv)
	if got := s.List(ProductNames); len(got) != 0 {
		t.Errorf("List() = %v from corrupt payload, want empty", got)
	}
}
