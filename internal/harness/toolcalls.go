package harness

import (
	"context"
	"encoding/json"
	"time"
)

// ToolCallsConfig bounds a ToolCalls-mode run.
type ToolCallsConfig struct {
	// MaxTurns is the turn budget; exceeding it without a terminal
	// objective status yields ErrBudgetExhausted.
	MaxTurns int

	// TimeoutBudgetMs is the wall-clock budget measured from Run entry.
	TimeoutBudgetMs int64

	// RepeatFailureWindow is how many of the most recent tool calls are
	// inspected when checking for the same-tool/same-args repeated-failure
	// Blocked rule. Zero uses a default of 3.
	RepeatFailureWindow int
}

func (c ToolCallsConfig) window() int {
	if c.RepeatFailureWindow > 0 {
		return c.RepeatFailureWindow
	}
	return 3
}

// TurnTrace records one ToolCalls-mode turn for the caller's observability.
type TurnTrace struct {
	TurnNumber    int
	Message       string
	ToolCalls     []ToolCall
	Results       []ToolExecution
	ProgramResult *ProgramResult
}

// Result is the outcome of a ToolCalls-mode Run.
type Result struct {
	Status      ObjectiveStatus
	Transcript  []Message
	Turns       []TurnTrace
	TurnsUsed   int
	FinalOutput string
}

type callRecord struct {
	tool string
	args string
	ok   bool
}

// Run executes the ToolCalls-mode turn loop: build messages, decide, execute
// requested tools, append observations, repeat until finished, budget
// exhaustion, or timeout.
func Run(ctx context.Context, port Port, objective, systemContext string, tools []ToolSpec, cfg ToolCallsConfig) (*Result, error) {
	deadline := time.Time{}
	if cfg.TimeoutBudgetMs > 0 {
		deadline = time.Now().Add(time.Duration(cfg.TimeoutBudgetMs) * time.Millisecond)
	}

	transcript := []Message{{Role: RoleUser, Content: objective}}
	result := &Result{Status: ObjectiveIncomplete}
	var history []callRecord

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for turn := 1; turn <= maxTurns; turn++ {
		select {
		case <-ctx.Done():
			result.Transcript = transcript
			return result, ctx.Err()
		default:
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			result.Transcript = transcript
			result.TurnsUsed = turn - 1
			return result, ErrTimeout
		}

		decision, err := port.Decide(ctx, transcript, systemContext, tools)
		if err != nil {
			result.Transcript = transcript
			result.TurnsUsed = turn - 1
			return result, err
		}

		trace := TurnTrace{TurnNumber: turn, Message: decision.Message, ToolCalls: decision.ToolCalls}
		if decision.Message != "" {
			transcript = append(transcript, Message{Role: RoleAssistant, Content: decision.Message})
		}

		result.FinalOutput = decision.Message
		finished := false

		if decision.Program != nil {
			progResult, progErr := RunProgram(ctx, port, *decision.Program)
			trace.ProgramResult = progResult
			if progResult != nil {
				for _, step := range progResult.Steps {
					transcript = append(transcript, Message{Role: RoleTool, Content: step.Output, ToolCallID: step.StepID, ToolName: string(step.Op)})
					if step.Finished {
						finished = true
					}
				}
			}
			result.Turns = append(result.Turns, trace)
			result.TurnsUsed = turn

			if progErr != nil {
				result.Transcript = transcript
				return result, progErr
			}
			if finished {
				result.Status = ObjectiveComplete
				result.Transcript = transcript
				return result, nil
			}
			continue
		}

		for _, tc := range decision.ToolCalls {
			var exec ToolExecution
			if spec, ok := toolSpecByName(tools, tc.Name); ok {
				if err := ValidateToolArgs(spec, tc.Args); err != nil {
					exec = ToolExecution{Success: false, Error: err.Error()}
					trace.Results = append(trace.Results, exec)
					transcript = append(transcript, Message{
						Role:       RoleTool,
						Content:    exec.Error,
						ToolCallID: tc.ID,
						ToolName:   tc.Name,
					})
					history = append(history, callRecord{tool: tc.Name, args: argsJSON(tc.Args), ok: false})
					continue
				}
			}

			var execErr error
			exec, execErr = port.ExecuteTool(ctx, tc.Name, tc.Args)
			if execErr != nil {
				exec = ToolExecution{Success: false, Error: execErr.Error()}
			}
			trace.Results = append(trace.Results, exec)

			history = append(history, callRecord{tool: tc.Name, args: argsJSON(tc.Args), ok: exec.Success})

			obs := exec.Output
			if !exec.Success {
				obs = exec.Error
			}
			transcript = append(transcript, Message{
				Role:       RoleTool,
				Content:    obs,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})

			if tc.Name == "finished" {
				finished = true
			}
		}

		result.Turns = append(result.Turns, trace)
		result.TurnsUsed = turn

		if cp, ok := port.(CheckpointPort); ok {
			_ = cp.SaveCheckpoint(Checkpoint{TurnNumber: turn})
		}

		if finished {
			result.Status = ObjectiveComplete
			result.Transcript = transcript
			return result, nil
		}

		if blocked(history, cfg.window()) {
			result.Status = ObjectiveBlocked
			result.Transcript = transcript
			return result, nil
		}

		if len(decision.ToolCalls) == 0 {
			// No tool calls and no finish signal: nothing further to
			// observe, so the turn loop cannot make progress.
			result.Transcript = transcript
			return result, nil
		}
	}

	result.Transcript = transcript
	return result, ErrBudgetExhausted
}

func argsJSON(args map[string]any) string {
	raw, _ := json.Marshal(args)
	return string(raw)
}

func toolSpecByName(tools []ToolSpec, name string) (ToolSpec, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSpec{}, false
}

// blocked implements the "repeated failure on the same tool with identical
// arguments within the window" → Blocked rule.
func blocked(history []callRecord, window int) bool {
	if len(history) < window {
		return false
	}
	recent := history[len(history)-window:]
	first := recent[0]
	if first.ok {
		return false
	}
	for _, rec := range recent[1:] {
		if rec.ok || rec.tool != first.tool || rec.args != first.args {
			return false
		}
	}
	return true
}
