// Package memorystore implements the Memory layer: four vector collections
// (user_inputs, version_snapshots, run_trajectories, doc_trajectories),
// content-hash dedup on ingest, KNN search, and token-budget-aware context
// packing (spec §4.2).
package memorystore

import "context"

// Embedder turns text into a fixed-dimension vector, so the Manager never
// knows which implementation is in use. StubEmbedder, which gives
// deterministic vectors, is the only implementation in this module.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
	Dimension() int
}
