package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/choir-run/choir/internal/harness"
)

// Toolset is the fixed set the Agent Harness runs over in mode (b), per
// spec §4.5: {bash, file_read, file_write, file_edit, message_writer, finished}.
func Toolset() []harness.ToolSpec {
	return []harness.ToolSpec{
		{
			Name:        "bash",
			Description: "Run a shell command in the sandboxed workspace and return its output.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Shell command to run."},
					"timeout_seconds": map[string]any{"type": "integer", "description": "Timeout in seconds (0 = no timeout).", "minimum": 0},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        "file_read",
			Description: "Read a file's contents from the sandboxed workspace.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []string{"path"},
			},
		},
		{
			Name:        "file_write",
			Description: "Write (overwriting) a file's contents in the sandboxed workspace.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
		},
		{
			Name:        "file_edit",
			Description: "Apply one or more find/replace edits to a file in the sandboxed workspace.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
					"edits": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"old_text":    map[string]any{"type": "string"},
								"new_text":    map[string]any{"type": "string"},
								"replace_all": map[string]any{"type": "boolean"},
							},
							"required": []string{"old_text", "new_text"},
						},
					},
				},
				"required": []string{"path", "edits"},
			},
		},
		{
			Name:        "message_writer",
			Description: "Emit a message to the run's observer without ending the turn loop.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
				"required":   []string{"text"},
			},
		},
		{
			Name:        "finished",
			Description: "Signal the objective is complete, ending the turn loop.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"summary": map[string]any{"type": "string"}},
			},
		},
	}
}

// execute dispatches one tool call against the sandboxed workspace at root.
// It never returns an error for a tool-level failure; that is carried in
// harness.ToolExecution.Success/Error.
func execute(ctx context.Context, root string, name string, args map[string]any) (harness.ToolExecution, error) {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	switch name {
	case "bash":
		command, _ := args["command"].(string)
		if command == "" {
			return harness.ToolExecution{Success: false, Error: "command is required", ElapsedMs: elapsed()}, nil
		}
		timeout := time.Duration(0)
		if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
		result, _ := runBash(ctx, command, root, timeout)
		if result.ExitCode != 0 {
			return harness.ToolExecution{Success: false, Output: trimmedOutput(result), Error: fmt.Sprintf("exit code %d", result.ExitCode), ElapsedMs: elapsed()}, nil
		}
		return harness.ToolExecution{Success: true, Output: trimmedOutput(result), ElapsedMs: elapsed()}, nil

	case "file_read":
		path, _ := args["path"].(string)
		content, err := readFile(root, path)
		if err != nil {
			return harness.ToolExecution{Success: false, Error: err.Error(), ElapsedMs: elapsed()}, nil
		}
		return harness.ToolExecution{Success: true, Output: content, ElapsedMs: elapsed()}, nil

	case "file_write":
		path, _ := args["path"].(string)
		content, _ := args["content"].(string)
		if err := writeFile(root, path, content); err != nil {
			return harness.ToolExecution{Success: false, Error: err.Error(), ElapsedMs: elapsed()}, nil
		}
		return harness.ToolExecution{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path), ElapsedMs: elapsed()}, nil

	case "file_edit":
		path, _ := args["path"].(string)
		edits := parseEdits(args["edits"])
		replacements, err := editFile(root, path, edits)
		if err != nil {
			return harness.ToolExecution{Success: false, Error: err.Error(), ElapsedMs: elapsed()}, nil
		}
		return harness.ToolExecution{Success: true, Output: fmt.Sprintf("%d replacement(s) applied", replacements), ElapsedMs: elapsed()}, nil

	case "message_writer":
		text, _ := args["text"].(string)
		return harness.ToolExecution{Success: true, Output: text, ElapsedMs: elapsed()}, nil

	case "finished":
		summary, _ := args["summary"].(string)
		return harness.ToolExecution{Success: true, Output: summary, ElapsedMs: elapsed()}, nil

	default:
		return harness.ToolExecution{Success: false, Error: fmt.Sprintf("unknown tool %q", name), ElapsedMs: elapsed()}, nil
	}
}

func parseEdits(raw any) []editOp {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]editOp, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		old, _ := m["old_text"].(string)
		newText, _ := m["new_text"].(string)
		replaceAll, _ := m["replace_all"].(bool)
		out = append(out, editOp{OldText: old, NewText: newText, ReplaceAll: replaceAll})
	}
	return out
}
