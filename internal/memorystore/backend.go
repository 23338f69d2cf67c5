package memorystore

import (
	"context"

	"github.com/choir-run/choir/pkg/models"
)

// Backend is the storage seam behind the Manager: a place to index entries
// and run a KNN search within one collection. sqlitevec.Backend is the
// production implementation; tests can swap in any other implementation of
// this interface.
type Backend interface {
	// Index stores entry, returning errs.ErrConflict-wrapped behavior is not
	// expected here - dedup is the Manager's job, done before Index is ever
	// called.
	Index(ctx context.Context, entry *models.MemoryEntry) error

	// FindByHash looks up an already-indexed entry by its content hash
	// within a collection, so the Manager can dedup on ingest. Returns nil,
	// nil if no match exists.
	FindByHash(ctx context.Context, collection models.Collection, chunkHash string) (*models.MemoryEntry, error)

	// Search returns the k nearest entries to query within collection,
	// ordered by ascending L2 distance.
	Search(ctx context.Context, collection models.Collection, query []float32, k int) ([]models.SearchHit, error)

	Count(ctx context.Context, collection models.Collection) (int, error)

	Close() error
}
