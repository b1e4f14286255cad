package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool defines the interface for tools that can be called by the agent
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON Schema for the tool's parameters
	Parameters() json.RawMessage

	// Execute runs the tool with the given arguments and returns the result
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// errorResult renders a failed execution the model can read and react to.
func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// jsonResult marshals v as the tool output.
func jsonResult(v any) (ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return ToolResult{Content: string(data)}, nil
}
