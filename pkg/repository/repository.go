// Package repository abstracts the key/blob store that holds the staged
// deltas, the sharded master dataset, and the catalog index. The engine
// requires atomic multi-object commit semantics: all paths in a batch land
// together or none do. Backends without native multi-object atomicity
// simulate it with a staging-then-pointer-swap pattern.
package repository

import (
	"context"
	"time"
)

// Revision identifies one committed state of the repository. PutBatch
// callers pass the revision they read to detect concurrent writers.
type Revision string

// AnyRevision skips the optimistic-concurrency check for writes that are
// safe to apply unconditionally (worker-owned delta namespaces).
const AnyRevision Revision = ""

// Put is a single object write within a batch.
type Put struct {
	Path string
	Data []byte
}

// ObjectInfo describes a stored object without its payload.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Repository is a key/blob store with optimistic concurrency. Get returns
// a NotFoundError for missing paths; PutBatch returns a ConflictError when
// the expected revision no longer matches.
type Repository interface {
	// Get reads one object.
	Get(ctx context.Context, path string) ([]byte, error)

	// List returns metadata for every object under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// PutBatch atomically writes all puts and returns the new revision.
	// With a concrete expected revision it fails with ConflictError if
	// the repository has moved on since the caller read it.
	PutBatch(ctx context.Context, puts []Put, expected Revision) (Revision, error)

	// Delete removes objects. Missing paths are not an error.
	Delete(ctx context.Context, paths ...string) error

	// Revision returns the current revision.
	Revision(ctx context.Context) (Revision, error)
}
