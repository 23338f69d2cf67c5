package memorystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStubEmbedder(32)

	v1, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 32)
}

func TestStubEmbedder_DifferentTextsDiffer(t *testing.T) {
	ctx := context.Background()
	e := NewStubEmbedder(32)

	v1, _ := e.Embed(ctx, "hello world")
	v2, _ := e.Embed(ctx, "goodbye world")

	assert.NotEqual(t, v1, v2)
}

func TestStubEmbedder_DefaultDimension(t *testing.T) {
	e := NewStubEmbedder(0)
	assert.Equal(t, 384, e.Dimension())
}
