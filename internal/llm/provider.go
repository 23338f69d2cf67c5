// Package llm wraps the concrete LLM providers (Anthropic, OpenAI, AWS
// Bedrock) behind the typed decide()/call_llm() functions the Agent Harness
// depends on, plus a model registry resolving a ModelHint to a concrete
// provider+model pair (spec §4.3.2, §4.3.4).
package llm

import (
	"context"

	"github.com/choir-run/choir/pkg/models"
)

// Provider is a single LLM backend's typed surface. Anthropic is the
// primary; OpenAI is a secondary provider serving the cheap hint; Bedrock is
// a third option serving the opus hint when configured.
type Provider interface {
	Name() string

	// Decide implements the ToolCalls-mode decide() contract: given the
	// conversation, system context, and available tools, returns the
	// assistant's message and any tool calls it requested.
	Decide(ctx context.Context, req models.DecideRequest, model string) (*models.DecideResult, error)

	// Call implements the Program-mode nested LLM call contract: a single
	// prompt/system-prompt pair with no tool use, returning plain text.
	Call(ctx context.Context, prompt, systemPrompt, model string) (*models.LlmCallResult, error)
}
