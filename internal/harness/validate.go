package harness

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidToolInput marks a tool call whose arguments failed schema
// validation before dispatch.
type ErrInvalidToolInput struct {
	ToolName string
	Err      error
}

func (e *ErrInvalidToolInput) Error() string {
	return fmt.Sprintf("harness: tool %s rejected invalid input: %v", e.ToolName, e.Err)
}

func (e *ErrInvalidToolInput) Unwrap() error { return e.Err }

// ValidateToolArgs compiles a tool's declared JSON schema and checks args
// against it, short-circuiting a call before it ever reaches ExecuteTool.
// A tool with no schema (nil or empty map) is treated as unconstrained.
func ValidateToolArgs(tool ToolSpec, args map[string]any) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return fmt.Errorf("harness: tool %s has unmarshalable schema: %w", tool.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	const resourceURL = "choir://tool-schema.json"
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("harness: tool %s schema invalid: %w", tool.Name, err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("harness: tool %s schema invalid: %w", tool.Name, err)
	}

	argsRaw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("harness: tool %s args unmarshalable: %w", tool.Name, err)
	}
	var decoded any
	if err := json.Unmarshal(argsRaw, &decoded); err != nil {
		return fmt.Errorf("harness: tool %s args undecodable: %w", tool.Name, err)
	}

	if err := schema.Validate(decoded); err != nil {
		return &ErrInvalidToolInput{ToolName: tool.Name, Err: err}
	}
	return nil
}
