package memorystore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// StubEmbedder derives a deterministic vector from a SHA-256 hash of the
// input text, used when CHOIR_MEMORY_STUB=1 or no real embedding provider is
// configured. It has no semantic meaning beyond "same text, same vector" and
// "different text, (almost certainly) different vector" - good enough for
// exercising dedup and exact-match KNN in tests without a network call.
type StubEmbedder struct {
	dim int
}

// NewStubEmbedder builds a stub producing vectors of the given dimension.
// A non-positive dim falls back to 384.
func NewStubEmbedder(dim int) *StubEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &StubEmbedder{dim: dim}
}

func (e *StubEmbedder) Name() string   { return "stub" }
func (e *StubEmbedder) Dimension() int { return e.dim }

func (e *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out := make([]float32, e.dim)
	seed := sha256.Sum256([]byte(text))

	block := seed
	for i := 0; i < e.dim; i++ {
		byteIdx := (i * 4) % len(block)
		if i > 0 && byteIdx == 0 {
			block = sha256.Sum256(block[:])
		}
		raw := binary.BigEndian.Uint32(block[byteIdx : byteIdx+4])
		// Map into [-1, 1] so distances behave like a normalized embedding.
		out[i] = float32(raw)/float32(1<<31) - 1
	}
	return out, nil
}
