package memorystore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"os"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/choir-run/choir/pkg/models"
)

// charsPerToken is the rough token estimator context_pack uses to decide
// whether an item fits the remaining budget (spec §4.2: "1 token ≈ 4
// chars").
const charsPerToken = 4

// Manager is the Memory Store: it owns embedding, content-hash dedup, and
// the four-collection KNN search surface on top of a Backend.
type Manager struct {
	backend  Backend
	embedder Embedder
}

// NewManager wires a Manager over backend and embedder. Callers typically
// select the embedder via config; NewManagerWithFallback below implements
// the "automatic fallback when the real model fails to load" rule.
func NewManager(backend Backend, embedder Embedder) *Manager {
	return &Manager{backend: backend, embedder: embedder}
}

// NewManagerWithFallback uses embedder if it can embed a trivial probe
// string, otherwise falls back to a stub embedder - either because
// CHOIR_MEMORY_STUB is set or because the real provider failed to load.
func NewManagerWithFallback(ctx context.Context, backend Backend, embedder Embedder) *Manager {
	if os.Getenv("CHOIR_MEMORY_STUB") == "1" || embedder == nil {
		return NewManager(backend, NewStubEmbedder(384))
	}
	if _, err := embedder.Embed(ctx, "choir-memory-probe"); err != nil {
		return NewManager(backend, NewStubEmbedder(embedder.Dimension()))
	}
	return NewManager(backend, embedder)
}

func chunkHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Ingest computes the content's SHA-256 hash and skips silently if that hash
// already exists in the collection, otherwise embeds and stores it. Returns
// whether a new entry was inserted.
func (m *Manager) Ingest(ctx context.Context, itemID string, collection models.Collection, sourceRef, content string) (bool, error) {
	hash := chunkHash(content)

	existing, err := m.backend.FindByHash(ctx, collection, hash)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	vec, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return false, err
	}

	if itemID == "" {
		itemID = ulid.Make().String()
	}

	entry := &models.MemoryEntry{
		ItemID:     itemID,
		Collection: collection,
		SourceRef:  sourceRef,
		Content:    content,
		ChunkHash:  hash,
		Embedding:  vec,
	}
	if err := m.backend.Index(ctx, entry); err != nil {
		return false, err
	}
	return true, nil
}

// Search embeds query and returns the k nearest entries in collection,
// ascending by distance, converted to ContextItems.
func (m *Manager) Search(ctx context.Context, collection models.Collection, query string, k int) ([]models.ContextItem, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := m.backend.Search(ctx, collection, vec, k)
	if err != nil {
		return nil, err
	}
	return toContextItems(hits), nil
}

func toContextItems(hits []models.SearchHit) []models.ContextItem {
	items := make([]models.ContextItem, len(hits))
	for i, h := range hits {
		items[i] = models.ContextItem{
			ItemID:    h.ItemID,
			Kind:      h.Collection,
			SourceRef: h.SourceRef,
			Content:   h.Content,
			Relevance: models.Relevance(h.Distance),
		}
	}
	return items
}

// Expand takes seed item IDs from sourceCollection, re-embeds each seed's
// content, and searches all four collections for neighborsPerItem matches
// each. Results are merged, deduplicated against the seed set, and sorted by
// descending relevance.
func (m *Manager) Expand(ctx context.Context, itemIDs []string, sourceCollection models.Collection, neighborsPerItem int) ([]models.ContextItem, error) {
	seeds := make(map[string]bool, len(itemIDs))
	var seedEntries []*models.MemoryEntry
	for _, id := range itemIDs {
		seeds[id] = true
		entry, err := m.findByID(ctx, sourceCollection, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			seedEntries = append(seedEntries, entry)
		}
	}

	seen := make(map[string]bool)
	var merged []models.ContextItem

	for _, seed := range seedEntries {
		vec, err := m.embedder.Embed(ctx, seed.Content)
		if err != nil {
			return nil, err
		}
		for _, coll := range models.AllCollections {
			hits, err := m.backend.Search(ctx, coll, vec, neighborsPerItem)
			if err != nil {
				return nil, err
			}
			for _, h := range hits {
				if seeds[h.ItemID] || seen[h.ItemID] {
					continue
				}
				seen[h.ItemID] = true
				merged = append(merged, models.ContextItem{
					ItemID:    h.ItemID,
					Kind:      h.Collection,
					SourceRef: h.SourceRef,
					Content:   h.Content,
					Relevance: models.Relevance(h.Distance),
				})
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Relevance > merged[j].Relevance })
	return merged, nil
}

// findByID is a small linear helper over Search with a huge k: Backend only
// exposes FindByHash and Search, so re-fetching a seed's content by id goes
// through a full-collection scan via Count+Search is wasteful; instead we
// search with the zero vector and filter, which every Backend implementation
// still has to support since it's a superset of Search with k = collection
// size. sqlitevec answers this in one table scan.
func (m *Manager) findByID(ctx context.Context, collection models.Collection, id string) (*models.MemoryEntry, error) {
	n, err := m.backend.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	hits, err := m.backend.Search(ctx, collection, nil, n)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		if h.ItemID == id {
			return &models.MemoryEntry{
				ItemID:     h.ItemID,
				Collection: h.Collection,
				SourceRef:  h.SourceRef,
				Content:    h.Content,
			}, nil
		}
	}
	return nil, nil
}

// ContextSnapshot runs a KNN search across all four collections, requesting
// ceil(maxItems/4) from each, merges ascending by distance, and truncates to
// maxItems.
func (m *Manager) ContextSnapshot(ctx context.Context, runID, query string, maxItems int) (*models.ContextSnapshot, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	perCollection := int(math.Ceil(float64(maxItems) / float64(len(models.AllCollections))))
	var allHits []models.SearchHit
	for _, coll := range models.AllCollections {
		hits, err := m.backend.Search(ctx, coll, vec, perCollection)
		if err != nil {
			return nil, err
		}
		allHits = append(allHits, hits...)
	}

	sort.Slice(allHits, func(i, j int) bool { return allHits[i].Distance < allHits[j].Distance })
	if len(allHits) > maxItems {
		allHits = allHits[:maxItems]
	}

	return &models.ContextSnapshot{
		RunID: runID,
		Query: query,
		Items: toContextItems(allHits),
	}, nil
}

// ContextPack runs the same multi-collection KNN search as ContextSnapshot
// but admits items greedily in descending relevance order, stopping at the
// first item whose content would overflow the remaining token_budget (1
// token ~= 4 chars).
func (m *Manager) ContextPack(ctx context.Context, runID, objective string, tokenBudget int) (*models.ContextSnapshot, error) {
	snapshot, err := m.ContextSnapshot(ctx, runID, objective, len(models.AllCollections)*tokenBudget/charsPerToken+len(models.AllCollections))
	if err != nil {
		return nil, err
	}

	sort.Slice(snapshot.Items, func(i, j int) bool { return snapshot.Items[i].Relevance > snapshot.Items[j].Relevance })

	packed := &models.ContextSnapshot{
		RunID:       runID,
		Query:       objective,
		TokenBudget: tokenBudget,
	}

	remaining := tokenBudget
	for _, item := range snapshot.Items {
		cost := (len(item.Content) + charsPerToken - 1) / charsPerToken
		if cost > remaining {
			break
		}
		packed.Items = append(packed.Items, item)
		remaining -= cost
		packed.TokensUsed += cost
	}

	return packed, nil
}
