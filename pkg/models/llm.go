package models

import "time"

// Scope identifies the conversational boundaries a traced LLM call belongs
// to: session/thread/call triple, plus the optional run/task it serves.
type Scope struct {
	RunID    string `json:"run_id,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	CallID   string `json:"call_id,omitempty"`
}

// LlmCallContext tracks one open LLM call from start_call to its terminal
// completed/failed event. Exactly one terminal event is emitted per
// TraceID.
type LlmCallContext struct {
	TraceID      string    `json:"trace_id"`
	Role         string    `json:"role"`
	FunctionName string    `json:"function_name"`
	StartedAt    time.Time `json:"started_at"`
	Scope        Scope     `json:"scope"`
}

// TokenUsage is attached to completed/failed LLM call events when available.
type TokenUsage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	CachedInputTokens  int `json:"cached_input_tokens,omitempty"`
	TotalTokens        int `json:"total_tokens"`
}

// ModelHint names the abstract model tiers a Program LlmCall step may
// request; the model registry resolves a hint to a concrete provider+model.
type ModelHint string

const (
	ModelFast   ModelHint = "fast"
	ModelCheap  ModelHint = "cheap"
	ModelStrong ModelHint = "strong"
	ModelOpus   ModelHint = "opus"
)
