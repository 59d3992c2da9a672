// Package dedupe guards against resubmission of identical report content.
// Production deployments back it with Redis: duplicate detection must live
// in an explicit external store (or the contract itself), never in process
// memory that evaporates on restart and is invisible to sibling instances.
package dedupe

import "context"

// Guard records content hashes that have already been submitted.
type Guard interface {
	// Seen reports whether hash was marked before.
	Seen(ctx context.Context, hash string) (bool, error)
	// Mark records hash as submitted.
	Mark(ctx context.Context, hash string) error
}
