// Package storage holds the session storage backends the seeder writes to.
package storage

import "context"

// SessionStorage is the browser's session-scoped key-value store, reduced to
// the single operation the seeder needs. Writes overwrite existing keys.
type SessionStorage interface {
	SetItem(ctx context.Context, key, value string) error
}
