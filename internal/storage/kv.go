// Package storage provides the local key-value persistence the ledger runs
// on. Every value is a JSON payload rewritten wholesale on mutation; there is
// no incremental persistence, so a reader always sees the last fully-written
// snapshot for a key.
package storage

import "context"

// KV is the persistence abstraction shared by the ledger, the rate cache and
// the rainfall tracker.
type KV interface {
	// Get returns the payload stored under key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set rewrites the payload stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
