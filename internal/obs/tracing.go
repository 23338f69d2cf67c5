package obs

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/choir-run/choir/pkg/models"
)

// Publisher is the minimal surface obs needs from the Event Store: append a
// durable event and/or fan it out to live subscribers. eventstore.Store
// satisfies this interface; obs never imports eventstore to avoid a cycle
// (eventstore has no dependency on obs).
type Publisher interface {
	Publish(ctx context.Context, eventType, actorID, userID, correlationID string, payload map[string]any, persist bool)
}

const (
	maxSystemContextBytes = 4 * 1024
	maxInputOutputBytes   = 16 * 1024
)

// Tracer emits the llm.call.{started,completed,failed} and
// worker.tool.{call,result} event pairs described in spec §4.8, and mirrors
// each LLM call onto an OpenTelemetry span so the two observability paths
// (Event Store timeline, trace backend) stay correlated by trace_id.
type Tracer struct {
	pub    Publisher
	tracer oteltrace.Tracer
}

// NewTracer builds a Tracer that publishes through pub and creates spans on
// the global OTel tracer provider under the "choir" instrumentation name.
func NewTracer(pub Publisher) *Tracer {
	return &Tracer{pub: pub, tracer: otel.Tracer("choir")}
}

// StartCall opens an LlmCallContext, emits llm.call.started, and opens a
// matching OTel span. The returned context carries the span so nested DAG
// steps create child spans automatically.
func (t *Tracer) StartCall(ctx context.Context, role, functionName, actorID, modelUsed, provider, systemContext string, input any, inputSummary string, scope models.Scope) (context.Context, *models.LlmCallContext) {
	traceID := ulid.Make().String()
	spanCtx, span := t.tracer.Start(ctx, "llm.call."+functionName,
		oteltrace.WithAttributes(
			attribute.String("choir.trace_id", traceID),
			attribute.String("choir.role", role),
			attribute.String("choir.model", modelUsed),
		),
	)

	llmCtx := &models.LlmCallContext{
		TraceID:      traceID,
		Role:         role,
		FunctionName: functionName,
		StartedAt:    time.Now(),
		Scope:        scope,
	}

	sysPayload, sysTrunc := BoundedPayload(systemContext, maxSystemContextBytes)
	inPayload, inTrunc := BoundedPayload(input, maxInputOutputBytes)

	payload := map[string]any{
		"trace_id":       traceID,
		"role":           role,
		"function_name":  functionName,
		"model_used":     modelUsed,
		"provider":       provider,
		"system_context": sysPayload,
		"input":          inPayload,
		"input_summary":  inputSummary,
		"scope":          scope,
	}
	attachTruncation(payload, "system_context", sysTrunc)
	attachTruncation(payload, "input", inTrunc)

	if t.pub != nil {
		t.pub.Publish(spanCtx, "llm.call.started", actorID, "", scope.RunID, payload, true)
	}

	return spanCtx, llmCtx
}

// CompleteCall emits llm.call.completed and closes the OTel span with an OK
// status.
func (t *Tracer) CompleteCall(ctx context.Context, llmCtx *models.LlmCallContext, actorID, modelUsed, provider string, output any, outputSummary string, usage *models.TokenUsage) {
	outPayload, outTrunc := BoundedPayload(output, maxInputOutputBytes)
	payload := map[string]any{
		"trace_id":       llmCtx.TraceID,
		"model_used":     modelUsed,
		"provider":       provider,
		"output":         outPayload,
		"output_summary": outputSummary,
		"elapsed_ms":     time.Since(llmCtx.StartedAt).Milliseconds(),
	}
	attachTruncation(payload, "output", outTrunc)
	if usage != nil {
		payload["usage"] = usage
	}

	if t.pub != nil {
		t.pub.Publish(ctx, "llm.call.completed", actorID, "", llmCtx.Scope.RunID, payload, true)
	}
	endSpan(ctx, nil)
}

// FailCall emits llm.call.failed and closes the OTel span with an error
// status.
func (t *Tracer) FailCall(ctx context.Context, llmCtx *models.LlmCallContext, actorID, modelUsed, provider, errorCode, errorMessage, failureKind string, usage *models.TokenUsage) {
	payload := map[string]any{
		"trace_id":      llmCtx.TraceID,
		"model_used":    modelUsed,
		"provider":      provider,
		"error_code":    errorCode,
		"error_message": errorMessage,
		"failure_kind":  failureKind,
		"elapsed_ms":    time.Since(llmCtx.StartedAt).Milliseconds(),
	}
	if usage != nil {
		payload["usage"] = usage
	}

	if t.pub != nil {
		t.pub.Publish(ctx, "llm.call.failed", actorID, "", llmCtx.Scope.RunID, payload, true)
	}
	endSpan(ctx, errFrom(errorMessage))
}

func attachTruncation(payload map[string]any, field string, trunc *TruncateResult) {
	if trunc == nil {
		return
	}
	payload[field+"_truncated"] = map[string]any{
		"truncated":     true,
		"original_size": trunc.OriginalSize,
	}
}

func errFrom(msg string) error {
	if msg == "" {
		return nil
	}
	return errString(msg)
}

type errString string

func (e errString) Error() string { return string(e) }

func endSpan(ctx context.Context, err error) {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// StartToolCall / CompleteToolCall implement the worker.tool.{call,result}
// variant of the tracing contract: same redaction/truncation/bound rules,
// keyed by tool_trace_id instead of trace_id.
func (t *Tracer) StartToolCall(ctx context.Context, toolName, actorID, runID string, args any) (context.Context, string) {
	toolTraceID := ulid.Make().String()
	spanCtx, _ := t.tracer.Start(ctx, "worker.tool."+toolName)
	argPayload, argTrunc := BoundedPayload(args, maxInputOutputBytes)
	payload := map[string]any{
		"tool_trace_id": toolTraceID,
		"tool_name":     toolName,
		"args":          argPayload,
	}
	attachTruncation(payload, "args", argTrunc)
	if t.pub != nil {
		t.pub.Publish(spanCtx, "worker.tool.call", actorID, "", runID, payload, true)
	}
	return spanCtx, toolTraceID
}

func (t *Tracer) CompleteToolCall(ctx context.Context, toolTraceID, actorID, runID string, success bool, output any, errMsg string, elapsed time.Duration) {
	outPayload, outTrunc := BoundedPayload(output, maxInputOutputBytes)
	payload := map[string]any{
		"tool_trace_id": toolTraceID,
		"success":       success,
		"output":        outPayload,
		"elapsed_ms":    elapsed.Milliseconds(),
	}
	attachTruncation(payload, "output", outTrunc)
	if errMsg != "" {
		payload["error"] = errMsg
	}
	if t.pub != nil {
		t.pub.Publish(ctx, "worker.tool.result", actorID, "", runID, payload, true)
	}
	endSpan(ctx, errFrom(errMsg))
}
