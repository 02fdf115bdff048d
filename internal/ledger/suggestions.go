package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"inventario/internal/storage"
)

const (
	suggestionsKey = "inventory_suggestions"

	// maxSuggestions caps each autocomplete list; the oldest entries beyond
	// the cap are dropped.
	maxSuggestions = 20
)

// SuggestionCategory names one of the three autocomplete lists.
type SuggestionCategory string

const (
	ProductTypes SuggestionCategory = "productTypes"
	ProductNames SuggestionCategory = "productNames"
	NoteTexts    SuggestionCategory = "notes"
)

func (c SuggestionCategory) Valid() bool {
	return c == ProductTypes || c == ProductNames || c == NoteTexts
}

// suggestionLists is the persisted shape: one JSON object under a single key,
// rewritten wholesale on every mutation.
type suggestionLists struct {
	ProductTypes []string `json:"productTypes"`
	ProductNames []string `json:"productNames"`
	Notes        []string `json:"notes"`
}

// SuggestionStore keeps three independent most-recently-used-first string
// lists feeding the entry form's autocomplete. It has no link back to the
// transactions that produced the values.
type SuggestionStore struct {
	mu    sync.Mutex
	kv    storage.KV
	lists suggestionLists
}

// NewSuggestionStore loads the persisted lists. Missing or corrupt payloads
// start empty rather than failing.
func NewSuggestionStore(ctx context.Context, kv storage.KV) *SuggestionStore {
	s := &SuggestionStore{kv: kv, lists: emptyLists()}

	raw, ok, err := kv.Get(ctx, suggestionsKey)
	if err != nil {
		slog.WarnContext(ctx, "Suggestions load failed, starting empty", "error", err)
		return s
	}
	if !ok {
		return s
	}
	var lists suggestionLists
	if err := json.Unmarshal(raw, &lists); err != nil {
		slog.WarnContext(ctx, "Suggestions payload corrupt, starting empty", "error", err)
		return s
	}
	s.lists = normalize(lists)
	return s
}

func emptyLists() suggestionLists {
	return suggestionLists{
		ProductTypes: []string{},
		ProductNames: []string{},
		Notes:        []string{},
	}
}

// normalize keeps the stored slices non-nil so the persisted JSON always
// carries arrays, which the backup collaborator relies on.
func normalize(lists suggestionLists) suggestionLists {
	if lists.ProductTypes == nil {
		lists.ProductTypes = []string{}
	}
	if lists.ProductNames == nil {
		lists.ProductNames = []string{}
	}
	if lists.Notes == nil {
		lists.Notes = []string{}
	}
	return lists
}

// Record inserts value at the front of the category list unless it is empty
// or already present; a repeated value keeps its position. The lists are
// persisted on every effective mutation.
func (s *SuggestionStore) Record(ctx context.Context, category SuggestionCategory, value string) {
	if value == "" || !category.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.listFor(category)
	for _, existing := range *list {
		if existing == value {
			return
		}
	}

	updated := append([]string{value}, *list...)
	if len(updated) > maxSuggestions {
		updated = updated[:maxSuggestions]
	}
	*list = updated
	s.persist(ctx)
}

// List returns a copy of the category's values, most recent first.
func (s *SuggestionStore) List(category SuggestionCategory) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !category.Valid() {
		return []string{}
	}
	list := *s.listFor(category)
	return append([]string{}, list...)
}

// Remove filters value out of the category list unconditionally.
func (s *SuggestionStore) Remove(ctx context.Context, category SuggestionCategory, value string) {
	if !category.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.listFor(category)
	filtered := make([]string, 0, len(*list))
	for _, existing := range *list {
		if existing != value {
			filtered = append(filtered, existing)
		}
	}
	*list = filtered
	s.persist(ctx)
}

func (s *SuggestionStore) listFor(category SuggestionCategory) *[]string {
	switch category {
	case ProductTypes:
		return &s.lists.ProductTypes
	case ProductNames:
		return &s.lists.ProductNames
	default:
		return &s.lists.Notes
	}
}

func (s *SuggestionStore) persist(ctx context.Context) {
	raw, err := json.Marshal(s.lists)
	if err != nil {
		slog.ErrorContext(ctx, "Suggestions marshal failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, suggestionsKey, raw); err != nil {
		slog.WarnContext(ctx, "Suggestions persist failed", "error", err)
	}
}
