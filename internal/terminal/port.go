package terminal

import (
	"context"
	"fmt"

	"github.com/choir-run/choir/internal/harness"
	"github.com/choir-run/choir/internal/llm"
	"github.com/choir-run/choir/internal/obs"
	"github.com/choir-run/choir/pkg/models"
)

// Port wires the harness to a sandboxed workspace, an LLM registry for
// decide(), and an obs.Publisher for message_writer output — the Terminal
// Worker's concrete implementation of harness.Port for mode (b) runs.
type Port struct {
	root     string
	registry *llm.Registry
	pub      obs.Publisher
	runID    string
}

// NewPort builds a Port scoped to a sandbox root.
func NewPort(root string, registry *llm.Registry, pub obs.Publisher, runID string) *Port {
	return &Port{root: root, registry: registry, pub: pub, runID: runID}
}

func (p *Port) CapabilitiesDescription() string {
	return "bash, file_read, file_write, file_edit, message_writer, finished, scoped to a sandboxed workspace"
}

// ResolveSource reads a workspace-relative file for SourceDocument; other
// source kinds are not meaningful for the Terminal Worker's own port.
func (p *Port) ResolveSource(ctx context.Context, kind harness.SourceKind, ref string, maxTokens int) (string, error) {
	if kind != harness.SourceDocument {
		return "", nil
	}
	content, err := readFile(p.root, ref)
	if err != nil {
		return "", nil
	}
	if maxTokens > 0 && len(content) > maxTokens*4 {
		content = content[:maxTokens*4]
	}
	return content, nil
}

func (p *Port) ExecuteTool(ctx context.Context, name string, args map[string]any) (harness.ToolExecution, error) {
	return execute(ctx, p.root, name, args)
}

func (p *Port) CallLLM(ctx context.Context, prompt, systemPrompt, modelHint string) (harness.LlmCallResult, error) {
	if p.registry == nil {
		return harness.LlmCallResult{}, fmt.Errorf("llm registry unavailable")
	}
	result, err := p.registry.Call(ctx, prompt, systemPrompt, models.ModelHint(modelHint))
	if err != nil {
		return harness.LlmCallResult{}, err
	}
	out := harness.LlmCallResult{Output: result.Output}
	if result.Usage != nil {
		out.Usage = &harness.TokenUsage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
			TotalTokens:  result.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (p *Port) EmitMessage(ctx context.Context, text string) error {
	if p.pub != nil {
		p.pub.Publish(ctx, "terminal.message", "terminal", "", p.runID, map[string]any{"text": text}, true)
	}
	return nil
}

// DispatchTool is not supported by the Terminal Worker's own port: it has no
// out-of-band dispatch surface of its own.
func (p *Port) DispatchTool(ctx context.Context, name string, args map[string]any, corrID string) error {
	return fmt.Errorf("dispatch_tool unsupported by terminal port")
}

// SpawnHarness is not supported: the Terminal Worker does not nest
// sub-harnesses.
func (p *Port) SpawnHarness(ctx context.Context, objective, contextStr, corrID string) (harness.ObjectiveStatus, error) {
	return harness.ObjectiveIncomplete, fmt.Errorf("spawn_harness unsupported by terminal port")
}

func (p *Port) Decide(ctx context.Context, messages []harness.Message, systemContext string, tools []harness.ToolSpec) (harness.DecideResult, error) {
	if p.registry == nil {
		return harness.DecideResult{}, fmt.Errorf("llm registry unavailable")
	}

	req := models.DecideRequest{
		Messages:      toModelMessages(messages),
		SystemContext: systemContext,
		Tools:         toModelTools(tools),
	}

	result, err := p.registry.Decide(ctx, req, "")
	if err != nil {
		return harness.DecideResult{}, err
	}

	return harness.DecideResult{
		Message:   result.Message,
		ToolCalls: toHarnessToolCalls(result.ToolCalls),
	}, nil
}

func toModelMessages(messages []harness.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, models.Message{
			Role:       models.Role(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		})
	}
	return out
}

func toModelTools(tools []harness.ToolSpec) []models.ToolSpec {
	out := make([]models.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, models.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

func toHarnessToolCalls(calls []models.ToolCall) []harness.ToolCall {
	out := make([]harness.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, harness.ToolCall{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	return out
}
