package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactJSON_NestedKeys(t *testing.T) {
	in := map[string]any{
		"api_key": "sk-ant-abc123",
		"nested": map[string]any{
			"Authorization": "Bearer xyz",
			"fine":          "value",
		},
		"list": []any{
			map[string]any{"password": "hunter2"},
			"plain",
		},
	}

	out := RedactJSON(in).(map[string]any)
	assert.Equal(t, "[REDACTED]", out["api_key"])
	assert.Equal(t, "value", out["nested"].(map[string]any)["fine"])
	assert.Equal(t, "[REDACTED]", out["nested"].(map[string]any)["Authorization"])
	list := out["list"].([]any)
	assert.Equal(t, "[REDACTED]", list[0].(map[string]any)["password"])
	assert.Equal(t, "plain", list[1])
}

func TestTruncateUTF8_DoesNotSplitRune(t *testing.T) {
	s := strings.Repeat("a", 10) + "日本語"
	res := TruncateUTF8(s, 11)
	require.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(s, res.Value))
	// The result must itself be valid UTF-8: re-encoding round trips.
	assert.LessOrEqual(t, len(res.Value), 11)
	assert.Equal(t, len(s), res.OriginalSize)
}

func TestTruncateUTF8_NoTruncationWhenUnderBudget(t *testing.T) {
	res := TruncateUTF8("short", 100)
	assert.False(t, res.Truncated)
	assert.Equal(t, "short", res.Value)
}

func TestBoundedPayload_AttachesTruncationMarker(t *testing.T) {
	big := strings.Repeat("x", 100)
	payload, trunc := BoundedPayload(map[string]any{"v": big}, 20)
	require.NotNil(t, trunc)
	assert.True(t, trunc.Truncated)
	assert.LessOrEqual(t, len(payload), 20)
}

func TestBoundedPayload_RedactsBeforeTruncating(t *testing.T) {
	payload, trunc := BoundedPayload(map[string]any{"token": "sk-ant-secretvalue"}, 4096)
	assert.Nil(t, trunc)
	assert.Contains(t, payload, "[REDACTED]")
	assert.NotContains(t, payload, "secretvalue")
}
