// Package settings provides world-scoped key-value repositories backing the
// host settings store. Values are opaque byte blobs stored and returned
// verbatim — the wiki layer owns their shape.
package settings

import "context"

type Repository interface {
	// Get returns the stored value, or common.ErrorNotFound.
	Get(ctx context.Context, world, key string) ([]byte, error)

	// Set upserts the value.
	Set(ctx context.Context, world, key string, value []byte) error
}
