// Package content is the gateway to the content-addressed file network
// holding full vulnerability write-ups. Blobs are opaque here; addressing is
// by content hash and re-fetching a hash must return byte-identical data.
package content

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable: the content network could not serve the request in
	// time. Read paths degrade to metadata-only instead of failing on it.
	ErrUnavailable = errors.New("content: store unavailable")
	// ErrNotFound: no blob under the given hash.
	ErrNotFound = errors.New("content: not found")
)

// Store is the content network surface the registry service consumes.
type Store interface {
	// Put uploads data under a display name and returns its content hash.
	Put(ctx context.Context, data []byte, name string) (string, error)
	// Get fetches a blob by hash. Implementations apply their own short
	// timeout so a slow network degrades a read rather than hanging it.
	Get(ctx context.Context, hash string) ([]byte, error)
	Health(ctx context.Context) error
}
