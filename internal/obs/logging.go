// Package obs provides logging, tracing, metrics, redaction, and the Run
// Timeline view that sit on top of the Event Store (spec §4.8).
package obs

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ContextKey is the type for context keys used by the logger and by the
// observability correlation helpers.
type ContextKey string

const (
	RunIDKey     ContextKey = "run_id"
	TaskIDKey    ContextKey = "task_id"
	ActorIDKey   ContextKey = "actor_id"
	TraceIDKey   ContextKey = "trace_id"
	SessionIDKey ContextKey = "session_id"
)

func WithRunID(ctx context.Context, id string) context.Context   { return context.WithValue(ctx, RunIDKey, id) }
func WithTaskID(ctx context.Context, id string) context.Context  { return context.WithValue(ctx, TaskIDKey, id) }
func WithActorID(ctx context.Context, id string) context.Context { return context.WithValue(ctx, ActorIDKey, id) }
func WithTraceID(ctx context.Context, id string) context.Context { return context.WithValue(ctx, TraceIDKey, id) }

func stringFromCtx(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func RunIDFromContext(ctx context.Context) string   { return stringFromCtx(ctx, RunIDKey) }
func TaskIDFromContext(ctx context.Context) string  { return stringFromCtx(ctx, TaskIDKey) }
func ActorIDFromContext(ctx context.Context) string { return stringFromCtx(ctx, ActorIDKey) }
func TraceIDFromContext(ctx context.Context) string { return stringFromCtx(ctx, TraceIDKey) }

// LogConfig configures the logging behavior.
type LogConfig struct {
	Level     string // debug|info|warn|error
	Format    string // json|text
	AddSource bool
}

// Logger is a structured, context-aware wrapper around log/slog that
// redacts sensitive fields before they are emitted. The `choir` command
// builds one from LogConfig and logs through it; the library packages do
// not log.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// defaultRedactPatterns matches the key names obs.Redact walks for event
// payloads (spec §4.8), plus common bearer/API-key token shapes so free-text
// log messages get the same treatment as structured payloads.
var defaultRedactPatterns = []string{
	`(?i)(authorization|api[_-]?key|token|password|secret|credential)[\s:=]+["']?([^\s"']{6,})["']?`,
	`sk-ant-[a-zA-Z0-9_-]{20,}`,
	`sk-[a-zA-Z0-9]{20,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
}

// NewLogger builds a Logger writing JSON (or text) to stdout at the given
// level.
func NewLogger(cfg LogConfig) *Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	redacts := make([]*regexp.Regexp, 0, len(defaultRedactPatterns))
	for _, p := range defaultRedactPatterns {
		if re, err := regexp.Compile(p); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), redacts: redacts}
}

func (l *Logger) withCtx(ctx context.Context, args []any) []any {
	out := make([]any, 0, len(args)+8)
	if id := RunIDFromContext(ctx); id != "" {
		out = append(out, "run_id", id)
	}
	if id := TaskIDFromContext(ctx); id != "" {
		out = append(out, "task_id", id)
	}
	if id := ActorIDFromContext(ctx); id != "" {
		out = append(out, "actor_id", id)
	}
	if id := TraceIDFromContext(ctx); id != "" {
		out = append(out, "trace_id", id)
	}
	for _, a := range args {
		out = append(out, l.redactValue(a))
	}
	return out
}

func (l *Logger) redactValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return l.redactString(s)
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.logger.Debug(l.redactString(msg), l.withCtx(ctx, args)...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.logger.Info(l.redactString(msg), l.withCtx(ctx, args)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.logger.Warn(l.redactString(msg), l.withCtx(ctx, args)...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.logger.Error(l.redactString(msg), l.withCtx(ctx, args)...)
}
