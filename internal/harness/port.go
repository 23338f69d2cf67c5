// Package harness implements the bounded tool-use loop that backs both the
// Researcher and Terminal workers: a turn loop over the typed decide()
// function (ToolCalls mode) or a declarative DAG of steps (Program mode),
// executed entirely behind a WorkerPort the harness never inspects
// concretely.
package harness

import "context"

// SourceKind names the resolve_source() input kinds a WorkerPort must
// understand.
type SourceKind string

const (
	SourceDocument     SourceKind = "document"
	SourceMemoryQuery  SourceKind = "memory_query"
	SourcePreviousTurn SourceKind = "previous_turn"
	SourceToolOutput   SourceKind = "tool_output"
)

// Port is the only extension point a worker implements. The harness never
// knows about bash, HTTP, or LLM providers directly — it only ever calls
// through Port.
type Port interface {
	// CapabilitiesDescription returns a human-readable summary of the tools
	// and sources this port exposes, suitable for inclusion in a system
	// prompt.
	CapabilitiesDescription() string

	// ResolveSource fetches ref of the given kind, optionally bounded to
	// maxTokens. Returns ("", nil) when the source has nothing to offer.
	ResolveSource(ctx context.Context, kind SourceKind, ref string, maxTokens int) (string, error)

	// ExecuteTool runs one tool call and returns its outcome. Never returns
	// an error for a tool-level failure — that is reported in
	// ToolExecution.Success/Error; a returned error means the port itself
	// could not attempt the call.
	ExecuteTool(ctx context.Context, name string, args map[string]any) (ToolExecution, error)

	// CallLLM performs a nested typed LLM call outside the main decide()
	// loop (used by Program mode's LlmCall step).
	CallLLM(ctx context.Context, prompt, systemPrompt, modelHint string) (LlmCallResult, error)

	// EmitMessage forwards a message to whatever sink the port's caller is
	// watching (a RunWriter section, a toast, ...).
	EmitMessage(ctx context.Context, text string) error

	// DispatchTool starts an out-of-band tool invocation tagged with corrID,
	// not awaited by the harness itself.
	DispatchTool(ctx context.Context, name string, args map[string]any, corrID string) error

	// SpawnHarness runs a nested sub-harness over objective with the given
	// context, tagged with corrID, and returns its final status.
	SpawnHarness(ctx context.Context, objective, contextStr, corrID string) (ObjectiveStatus, error)

	// Decide invokes the typed decide() function: given the conversation,
	// system context, and available tools, returns the assistant's message
	// and any tool calls it requested.
	Decide(ctx context.Context, messages []Message, systemContext string, tools []ToolSpec) (DecideResult, error)
}

// ToolExecution is the outcome of one ExecuteTool call.
type ToolExecution struct {
	Success   bool
	Output    string
	Error     string
	ElapsedMs int64
}

// LlmCallResult is the result of a nested typed LLM call made from a
// Program LlmCall step.
type LlmCallResult struct {
	Output string
	Usage  *TokenUsage
}

// TokenUsage mirrors models.TokenUsage without importing pkg/models here,
// keeping the harness package's public surface self-contained for workers
// that depend on it without the rest of the module's model types.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ObjectiveStatus is the harness's after-turn assessment of progress toward
// the objective.
type ObjectiveStatus string

const (
	ObjectiveComplete   ObjectiveStatus = "complete"
	ObjectiveIncomplete ObjectiveStatus = "incomplete"
	ObjectiveBlocked    ObjectiveStatus = "blocked"
)

// Role identifies who authored a Message in the harness conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in the conversation the harness builds for decide().
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolName   string
}

// ToolSpec describes one tool available to decide().
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is one tool invocation requested by decide().
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// DecideResult is decide()'s output. A turn normally requests ToolCalls; it
// may instead emit Program, a DAG the harness executes to completion inside
// the same turn (spec §4.3.2).
type DecideResult struct {
	Message   string
	ToolCalls []ToolCall
	Program   *Program
}
