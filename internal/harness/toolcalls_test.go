package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FinishedToolCallCompletesObjective(t *testing.T) {
	calls := 0
	port := &fakePort{
		decideFn: func(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error) {
			calls++
			return DecideResult{
				Message:   "done",
				ToolCalls: []ToolCall{{ID: "1", Name: "finished", Args: map[string]any{}}},
			}, nil
		},
	}

	result, err := Run(context.Background(), port, "do the thing", "system", nil, ToolCallsConfig{MaxTurns: 5})
	require.NoError(t, err)
	assert.Equal(t, ObjectiveComplete, result.Status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.TurnsUsed)
}

func TestRun_BudgetExhausted(t *testing.T) {
	port := &fakePort{
		decideFn: func(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error) {
			return DecideResult{
				Message:   "still working",
				ToolCalls: []ToolCall{{ID: "1", Name: "search", Args: map[string]any{"q": "x"}}},
			}, nil
		},
	}

	result, err := Run(context.Background(), port, "objective", "", nil, ToolCallsConfig{MaxTurns: 2})
	require.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 2, result.TurnsUsed)
}

func TestRun_RepeatedIdenticalFailureBlocks(t *testing.T) {
	port := &fakePort{
		decideFn: func(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error) {
			return DecideResult{
				ToolCalls: []ToolCall{{ID: "1", Name: "flaky", Args: map[string]any{"x": 1}}},
			}, nil
		},
		executeToolFn: func(ctx context.Context, name string, args map[string]any) (ToolExecution, error) {
			return ToolExecution{Success: false, Error: "boom"}, nil
		},
	}

	result, err := Run(context.Background(), port, "objective", "", nil, ToolCallsConfig{MaxTurns: 10, RepeatFailureWindow: 3})
	require.NoError(t, err)
	assert.Equal(t, ObjectiveBlocked, result.Status)
	assert.Equal(t, 3, result.TurnsUsed)
}

func TestRun_NoToolCallsStopsEarly(t *testing.T) {
	port := &fakePort{
		decideFn: func(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error) {
			return DecideResult{Message: "nothing to do"}, nil
		},
	}

	result, err := Run(context.Background(), port, "objective", "", nil, ToolCallsConfig{MaxTurns: 5})
	require.NoError(t, err)
	assert.Equal(t, ObjectiveIncomplete, result.Status)
	assert.Equal(t, 1, result.TurnsUsed)
}
