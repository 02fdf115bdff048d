// Package backup snapshots and restores the three persisted collections as a
// single JSON document. Payloads travel verbatim: the backup layer never
// interprets transaction or suggestion contents, so a snapshot taken with one
// schema version restores byte-for-byte under the same keys.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"inventario/internal/storage"
)

const (
	transactionsKey   = "inventory_transactions"
	suggestionsKey    = "inventory_suggestions"
	precipitationsKey = "@precipitations_v1"
)

// Snapshot is the exported document. Missing transactions or precipitations
// export as empty arrays; missing suggestions export as null.
type Snapshot struct {
	ExportedAt     string          `json:"exportedAt"`
	Transactions   json.RawMessage `json:"transactions"`
	Suggestions    json.RawMessage `json:"suggestions"`
	Precipitations json.RawMessage `json:"precipitations"`
}

// Manager builds and restores snapshots against a KV store.
type Manager struct {
	kv  storage.KV
	now func() time.Time
}

func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv, now: time.Now}
}

// WithClock overrides the clock, used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Export reads the three raw payloads and assembles the snapshot.
func (m *Manager) Export(ctx context.Context) (Snapshot, error) {
	transactions, err := m.rawOr(ctx, transactionsKey, []byte("[]"))
	if err != nil {
		return Snapshot{}, err
	}
	suggestions, err := m.rawOr(ctx, suggestionsKey, []byte("null"))
	if err != nil {
		return Snapshot{}, err
	}
	precipitations, err := m.rawOr(ctx, precipitationsKey, []byte("[]"))
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		ExportedAt:     m.now().UTC().Format(time.RFC3339),
		Transactions:   transactions,
		Suggestions:    suggestions,
		Precipitations: precipitations,
	}, nil
}

// Import writes each present section back under its key. Absent or null
// sections leave the existing payload untouched.
func (m *Manager) Import(ctx context.Context, snapshot Snapshot) error {
	sections := []struct {
		key string
		raw json.RawMessage
	}{
		{transactionsKey, snapshot.Transactions},
		{suggestionsKey, snapshot.Suggestions},
		{precipitationsKey, snapshot.Precipitations},
	}
	for _, s := range sections {
		if len(s.raw) == 0 || string(s.raw) == "null" {
			continue
		}
		if err := m.kv.Set(ctx, s.key, s.raw); err != nil {
			return fmt.Errorf("restore %s: %w", s.key, err)
		}
	}
	slog.InfoContext(ctx, "Backup imported", "exported_at", snapshot.ExportedAt)
	return nil
}

// ImportJSON parses a snapshot document and restores it.
func (m *Manager) ImportJSON(ctx context.Context, raw []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("parse backup document: %w", err)
	}
	return m.Import(ctx, snapshot)
}

// WriteFile exports a snapshot into dir with a timestamped file name and
// returns the written path.
func (m *Manager) WriteFile(ctx context.Context, dir string) (string, error) {
	snapshot, err := m.Export(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal backup: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	name := fmt.Sprintf("inventario_backup_%s.json", m.now().UTC().Format("2006_01_02_15_04_05"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}

	slog.InfoContext(ctx, "Backup written", "path", path, "bytes", len(raw))
	return path, nil
}

func (m *Manager) rawOr(ctx context.Context, key string, fallback []byte) (json.RawMessage, error) {
	raw, ok, err := m.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	return raw, nil
}
