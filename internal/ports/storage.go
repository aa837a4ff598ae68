// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import "context"

// BlobStorage is a string key-value store holding opaque serialized blobs.
// It plays the role browser local storage plays for a client-side app:
// a single writer owns each key and every Set overwrites the previous value.
//
// Example usage in application layer:
//
//	blob, ok, err := storage.Get(ctx, "citacoes")
//	if err != nil { ... }
//	if !ok { /* nothing persisted yet */ }
type BlobStorage interface {
	// Get returns the blob stored at key.
	// The boolean is false when nothing is stored at key; that is not an error.
	// Returns domain.ErrUnavailable if the backend cannot be read.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value at key, replacing any prior value.
	// Writes are atomic: readers see the old or the new blob, never a mix.
	// Returns domain.ErrUnavailable if the backend cannot be written.
	Set(ctx context.Context, key, value string) error
}
