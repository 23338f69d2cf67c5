package memorystore

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choir-run/choir/pkg/models"
)

// fakeBackend is a minimal in-memory Backend for Manager tests, independent
// of the sqlitevec implementation's on-disk concerns.
type fakeBackend struct {
	entries map[models.Collection][]*models.MemoryEntry
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{entries: make(map[models.Collection][]*models.MemoryEntry)}
}

func (f *fakeBackend) Index(ctx context.Context, entry *models.MemoryEntry) error {
	f.entries[entry.Collection] = append(f.entries[entry.Collection], entry)
	return nil
}

func (f *fakeBackend) FindByHash(ctx context.Context, collection models.Collection, chunkHash string) (*models.MemoryEntry, error) {
	for _, e := range f.entries[collection] {
		if e.ChunkHash == chunkHash {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) Search(ctx context.Context, collection models.Collection, query []float32, k int) ([]models.SearchHit, error) {
	var hits []models.SearchHit
	for _, e := range f.entries[collection] {
		hits = append(hits, models.SearchHit{
			ItemID:     e.ItemID,
			Collection: e.Collection,
			SourceRef:  e.SourceRef,
			Content:    e.Content,
			Distance:   l2(query, e.Embedding),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeBackend) Count(ctx context.Context, collection models.Collection) (int, error) {
	return len(f.entries[collection]), nil
}

func (f *fakeBackend) Close() error { return nil }

func l2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func TestIngest_DedupByContentHash(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(newFakeBackend(), NewStubEmbedder(16))

	inserted, err := mgr.Ingest(ctx, "a", models.CollectionUserInputs, "src-a", "hello")
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = mgr.Ingest(ctx, "b", models.CollectionUserInputs, "src-b", "hello")
	require.NoError(t, err)
	assert.False(t, inserted, "identical content must be skipped even under a different item_id")

	hits, err := mgr.Search(ctx, models.CollectionUserInputs, "hello", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ItemID)
}

func TestIngest_DistinctContentStoresBoth(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(newFakeBackend(), NewStubEmbedder(16))

	insertedA, _ := mgr.Ingest(ctx, "a", models.CollectionUserInputs, "src-a", "hello")
	insertedB, _ := mgr.Ingest(ctx, "b", models.CollectionUserInputs, "src-b", "goodbye")
	assert.True(t, insertedA)
	assert.True(t, insertedB)

	count, err := mgr.backend.Count(ctx, models.CollectionUserInputs)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSearch_ExactMatchIsNearestWithStubEmbedder(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(newFakeBackend(), NewStubEmbedder(16))

	_, _ = mgr.Ingest(ctx, "a", models.CollectionUserInputs, "src-a", "the quick brown fox")
	_, _ = mgr.Ingest(ctx, "b", models.CollectionUserInputs, "src-b", "completely unrelated text")

	hits, err := mgr.Search(ctx, models.CollectionUserInputs, "the quick brown fox", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ItemID)
	assert.Equal(t, float64(1), hits[0].Relevance, "distance 0 must map to relevance 1")
}

func TestContextPack_StopsAtFirstOverflow(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(newFakeBackend(), NewStubEmbedder(16))

	_, _ = mgr.Ingest(ctx, "a", models.CollectionUserInputs, "src-a", "short")
	_, _ = mgr.Ingest(ctx, "b", models.CollectionVersionSnapshots, "src-b", "another short one")

	snapshot, err := mgr.ContextPack(ctx, "run-1", "short", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, snapshot.TokensUsed, 2)
	assert.Equal(t, 2, snapshot.TokenBudget)
}

func TestExpand_ExcludesSeedsAndDedupes(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(newFakeBackend(), NewStubEmbedder(16))

	_, _ = mgr.Ingest(ctx, "seed", models.CollectionUserInputs, "src", "seed content")
	_, _ = mgr.Ingest(ctx, "neighbor", models.CollectionUserInputs, "src", "neighbor content")

	items, err := mgr.Expand(ctx, []string{"seed"}, models.CollectionUserInputs, 5)
	require.NoError(t, err)
	for _, item := range items {
		assert.NotEqual(t, "seed", item.ItemID)
	}
}
