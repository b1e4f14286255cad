package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/tools"
)

// Agent answers one turn given the prior conversation
type Agent interface {
	// Name returns the agent's label
	Name() string

	// Run executes a turn with the given history and new user input
	Run(ctx context.Context, history []llm.Message, input string) (*Result, error)
}

var _ Agent = (*Graph)(nil)

// AgentTool exposes an agent as a tool taking a single string argument.
// Every call starts a fresh conversation for the wrapped agent.
type AgentTool struct {
	agent       Agent
	name        string
	description string
	param       string
	paramDesc   string
}

// NewAgentTool wraps a so a supervising agent can delegate to it
func NewAgentTool(a Agent, name, description, param, paramDesc string) *AgentTool {
	return &AgentTool{
		agent:       a,
		name:        name,
		description: description,
		param:       param,
		paramDesc:   paramDesc,
	}
}

func (t *AgentTool) Name() string {
	return t.name
}

func (t *AgentTool) Description() string {
	return t.description
}

func (t *AgentTool) Parameters() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			t.param: map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": t.paramDesc,
			},
		},
		"required": []string{t.param},
	}
	data, _ := json.Marshal(schema)
	return data
}

func (t *AgentTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var in map[string]any
	if err := json.Unmarshal(args, &in); err != nil {
		return tools.ToolResult{Content: fmt.Sprintf("Failed to parse %s arguments: %v", t.name, err), IsError: true}, nil
	}
	input, _ := in[t.param].(string)

	result, err := t.agent.Run(ctx, nil, input)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("%s agent: %w", t.name, err)
	}
	return tools.ToolResult{Content: result.Content}, nil
}
