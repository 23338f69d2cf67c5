// Package terminal implements the Terminal Worker (spec §4.5): either a
// one-shot sandboxed bash command, or an Agent Harness run over a fixed
// toolset of bash/file/message tools against an objective.
package terminal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/internal/harness"
	"github.com/choir-run/choir/internal/llm"
	"github.com/choir-run/choir/internal/obs"
)

// Step is one Terminal Worker invocation's parameters. Exactly one of
// TerminalCommand or Objective is set, selecting mode (a) or mode (b).
type Step struct {
	TerminalCommand string
	Objective       string
	MaxSteps        int
	TimeoutSeconds  int
}

// CommandOutcome is mode (a)'s result.
type CommandOutcome struct {
	Result CommandResult
}

// Worker runs Terminal steps against a sandboxed workspace root. It
// enforces a single-start protocol per spec §4.5: Start succeeds once,
// subsequent calls return errs.ErrAlreadyRunning.
type Worker struct {
	root     string
	registry *llm.Registry
	pub      obs.Publisher
	runID    string
	started  atomic.Bool
}

// NewWorker builds a Terminal Worker scoped to root.
func NewWorker(root string, registry *llm.Registry, pub obs.Publisher, runID string) *Worker {
	return &Worker{root: root, registry: registry, pub: pub, runID: runID}
}

// Start marks the worker as running. Only the first call succeeds.
func (w *Worker) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return errs.ErrAlreadyRunning
	}
	return nil
}

// RunCommand executes step.TerminalCommand synchronously under
// step.TimeoutSeconds, mode (a).
func (w *Worker) RunCommand(ctx context.Context, step Step) (*CommandOutcome, error) {
	timeout := time.Duration(0)
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	result, err := runBash(ctx, step.TerminalCommand, w.root, timeout)
	if err != nil {
		return nil, err
	}
	return &CommandOutcome{Result: result}, nil
}

// RunObjective runs the Agent Harness over Toolset() against step.Objective,
// mode (b).
func (w *Worker) RunObjective(ctx context.Context, step Step) (*harness.Result, error) {
	port := NewPort(w.root, w.registry, w.pub, w.runID)

	maxTurns := step.MaxSteps
	if maxTurns <= 0 {
		maxTurns = 4
	}
	timeoutMs := int64(step.TimeoutSeconds) * 1000
	if timeoutMs <= 0 {
		timeoutMs = 60_000
	}

	cfg := harness.ToolCallsConfig{
		MaxTurns:        maxTurns,
		TimeoutBudgetMs: timeoutMs,
	}

	return harness.Run(ctx, port, step.Objective, port.CapabilitiesDescription(), Toolset(), cfg)
}

// Run dispatches step to RunCommand or RunObjective per spec §4.5: mode (a)
// is selected when TerminalCommand is set, mode (b) when only Objective is.
func (w *Worker) Run(ctx context.Context, step Step) (*harness.Result, error) {
	if step.TerminalCommand != "" {
		outcome, err := w.RunCommand(ctx, step)
		if err != nil {
			return nil, err
		}
		status := harness.ObjectiveComplete
		if outcome.Result.ExitCode != 0 {
			status = harness.ObjectiveIncomplete
		}
		return &harness.Result{
			Status:      status,
			FinalOutput: trimmedOutput(outcome.Result),
		}, nil
	}
	return w.RunObjective(ctx, step)
}
