package harness

import (
	"context"
	"errors"
)

// fakePort is a minimal, deterministic Port used across this package's
// tests. Each test configures the subset of behavior it needs.
type fakePort struct {
	decideFn      func(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error)
	executeToolFn func(ctx context.Context, name string, args map[string]any) (ToolExecution, error)
	callLLMFn     func(ctx context.Context, prompt, systemPrompt, modelHint string) (LlmCallResult, error)
	emitted       []string
}

func (p *fakePort) CapabilitiesDescription() string { return "fake" }

func (p *fakePort) ResolveSource(ctx context.Context, kind SourceKind, ref string, maxTokens int) (string, error) {
	return "", nil
}

func (p *fakePort) ExecuteTool(ctx context.Context, name string, args map[string]any) (ToolExecution, error) {
	if p.executeToolFn != nil {
		return p.executeToolFn(ctx, name, args)
	}
	return ToolExecution{Success: true, Output: "ok"}, nil
}

func (p *fakePort) CallLLM(ctx context.Context, prompt, systemPrompt, modelHint string) (LlmCallResult, error) {
	if p.callLLMFn != nil {
		return p.callLLMFn(ctx, prompt, systemPrompt, modelHint)
	}
	return LlmCallResult{Output: "llm-output"}, nil
}

func (p *fakePort) EmitMessage(ctx context.Context, text string) error {
	p.emitted = append(p.emitted, text)
	return nil
}

func (p *fakePort) DispatchTool(ctx context.Context, name string, args map[string]any, corrID string) error {
	return nil
}

func (p *fakePort) SpawnHarness(ctx context.Context, objective, contextStr, corrID string) (ObjectiveStatus, error) {
	return ObjectiveComplete, nil
}

func (p *fakePort) Decide(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error) {
	if p.decideFn != nil {
		return p.decideFn(ctx, messages, systemContext, tools)
	}
	return DecideResult{}, errors.New("fakePort: no decideFn configured")
}
