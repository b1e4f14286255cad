package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

// TravelInfoTool asks the LLM for tips about a destination
type TravelInfoTool struct {
	model llm.Completer
}

func NewTravelInfoTool(model llm.Completer) *TravelInfoTool {
	return &TravelInfoTool{model: model}
}

func (t *TravelInfoTool) Name() string {
	return "travel_info"
}

func (t *TravelInfoTool) Description() string {
	return "Offers travel information, tips, and recommendations for a given destination."
}

func (t *TravelInfoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"destination": {
				"type": "string",
				"minLength": 1,
				"description": "The place the user wants to visit"
			}
		},
		"required": ["destination"]
	}`)
}

func (t *TravelInfoTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var in struct {
		Destination string `json:"destination"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Failed to parse travel arguments: %v", err), nil
	}

	prompt := fmt.Sprintf("Provide travel information, tips, and recommendations for visiting %s.", in.Destination)
	answer, err := t.model.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, nil)
	if err != nil {
		return ToolResult{}, fmt.Errorf("travel info for %s: %w", in.Destination, err)
	}
	return ToolResult{Content: answer}, nil
}
