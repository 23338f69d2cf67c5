package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProgram_SubstitutesStepReferences(t *testing.T) {
	port := &fakePort{
		executeToolFn: func(ctx context.Context, name string, args map[string]any) (ToolExecution, error) {
			return ToolExecution{Success: true, Output: "search-results"}, nil
		},
	}

	prog := Program{Steps: []Step{
		{ID: "search", Op: OpToolCall, ToolName: "web_search", ToolArgs: map[string]any{"q": "choir"}},
		{ID: "summary", Op: OpTransform, SourceStepID: "search", TransformOp: "truncate", TransformArg: "6"},
		{ID: "emit", Op: OpEmit, Content: "result: ${summary}"},
	}}

	result, err := RunProgram(context.Background(), port, prog)
	require.NoError(t, err)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, "search", result.Steps[1].Output)
	assert.Equal(t, "result: search", result.Steps[2].Output)
	assert.Equal(t, []string{"result: search"}, port.emitted)
}

func TestRunProgram_CyclicDAGFails(t *testing.T) {
	port := &fakePort{}
	prog := Program{Steps: []Step{
		{ID: "a", Op: OpEmit, Content: "${b}", DependsOn: []string{"b"}},
		{ID: "b", Op: OpEmit, Content: "${a}", DependsOn: []string{"a"}},
	}}

	_, err := RunProgram(context.Background(), port, prog)
	require.ErrorIs(t, err, ErrCyclicDAG)
}

func TestRunProgram_DagTooLarge(t *testing.T) {
	port := &fakePort{}
	prog := Program{MaxDagSteps: 1, Steps: []Step{
		{ID: "a", Op: OpEmit, Content: "x"},
		{ID: "b", Op: OpEmit, Content: "y"},
	}}

	_, err := RunProgram(context.Background(), port, prog)
	require.ErrorIs(t, err, ErrDagTooLarge)
}

func TestRunProgram_UnresolvedReference(t *testing.T) {
	port := &fakePort{}
	prog := Program{Steps: []Step{
		{ID: "emit", Op: OpEmit, Content: "missing: ${nope}"},
	}}

	result, err := RunProgram(context.Background(), port, prog)
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.False(t, result.Steps[0].Success)
	assert.Equal(t, ErrUnresolvedRef.Error(), result.Steps[0].Error)
}

func TestRunProgram_GateSkipsDownstreamTransitively(t *testing.T) {
	port := &fakePort{}
	prog := Program{Steps: []Step{
		{ID: "source", Op: OpEmit, Content: "no"},
		{ID: "gate", Op: OpGate, SourceStepID: "source", Predicate: "equals:yes"},
		{ID: "downstream1", Op: OpEmit, Content: "a", DependsOn: []string{"gate"}},
		{ID: "downstream2", Op: OpEmit, Content: "b", DependsOn: []string{"downstream1"}},
	}}

	result, err := RunProgram(context.Background(), port, prog)
	require.NoError(t, err)

	byID := map[string]StepTrace{}
	for _, s := range result.Steps {
		byID[s.StepID] = s
	}
	assert.False(t, byID["gate"].Skipped)
	assert.Equal(t, "false", byID["gate"].Output)
	assert.True(t, byID["downstream1"].Skipped)
	assert.True(t, byID["downstream2"].Skipped)
}

func TestRunProgram_JSONExtract(t *testing.T) {
	port := &fakePort{
		executeToolFn: func(ctx context.Context, name string, args map[string]any) (ToolExecution, error) {
			return ToolExecution{Success: true, Output: `{"results":[{"title":"first"}]}`}, nil
		},
	}
	prog := Program{Steps: []Step{
		{ID: "fetch", Op: OpToolCall, ToolName: "fetch_url"},
		{ID: "title", Op: OpTransform, SourceStepID: "fetch", TransformOp: "json_extract", TransformArg: "results.0.title"},
	}}

	result, err := RunProgram(context.Background(), port, prog)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Steps[1].Output)
}

func TestRunProgram_LlmCallStep(t *testing.T) {
	port := &fakePort{
		callLLMFn: func(ctx context.Context, prompt, systemPrompt, modelHint string) (LlmCallResult, error) {
			return LlmCallResult{Output: "answer for " + prompt}, nil
		},
	}
	prog := Program{Steps: []Step{
		{ID: "ask", Op: OpLlmCall, PromptTemplate: "what is choir", ModelHint: "fast"},
	}}

	result, err := RunProgram(context.Background(), port, prog)
	require.NoError(t, err)
	assert.Equal(t, "answer for what is choir", result.Steps[0].Output)
}
