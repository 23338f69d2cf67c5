package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToolArgs_NoSchemaAlwaysPasses(t *testing.T) {
	err := ValidateToolArgs(ToolSpec{Name: "bash"}, map[string]any{"command": "ls"})
	require.NoError(t, err)
}

func TestValidateToolArgs_RejectsMissingRequiredField(t *testing.T) {
	tool := ToolSpec{
		Name: "web_search",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"query"},
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
	}

	err := ValidateToolArgs(tool, map[string]any{})
	require.Error(t, err)

	var invalid *ErrInvalidToolInput
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "web_search", invalid.ToolName)
}

func TestValidateToolArgs_AcceptsConformingArgs(t *testing.T) {
	tool := ToolSpec{
		Name: "web_search",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"query"},
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
		},
	}

	err := ValidateToolArgs(tool, map[string]any{"query": "choir"})
	require.NoError(t, err)
}
