package storage

import (
	"context"
	"time"
)

// Backend variant names, recorded on every completed job so an artifact
// stays resolvable even if the configured variant changes between
// submission and retrieval.
const (
	VariantLocal = "local"
	VariantS3    = "s3"
)

// Backend persists result artifacts and produces retrieval references.
// Implementations must be safe for concurrent use by independent workers.
type Backend interface {
	// Variant returns the backend's variant name (VariantLocal, VariantS3).
	Variant() string

	// Store writes the artifact bytes under the given base filename.
	// A single attempt; callers treat any error as terminal for the job.
	Store(ctx context.Context, filename string, data []byte, contentType string) error

	// Link resolves a stored filename to a retrieval reference: a file
	// path for the local variant, a time-limited presigned URL for s3.
	Link(ctx context.Context, filename string) (string, error)

	// Sweep deletes artifacts older than the given age and reports how
	// many were removed. Used by the janitor; the sweep is a blind
	// age-based pass over the backend's namespace, not keyed off records.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}
