package agent

import (
	"fmt"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/tools"
)

// SupervisorOptions tunes the supervisor and its sub-agents
type SupervisorOptions struct {
	MaxToolRounds int
	// ToolTimeout bounds each web search inside a sub-agent
	ToolTimeout time.Duration
	// AgentTimeout bounds each delegated sub-agent run
	AgentTimeout time.Duration
}

// NewSupervisor builds a supervisor that delegates to a researcher and an
// explainer, both bound to search.
func NewSupervisor(model llm.ChatModel, search tools.Tool, opts SupervisorOptions) (*Graph, error) {
	subTools, err := tools.NewRegistryWith(search)
	if err != nil {
		return nil, fmt.Errorf("bind search tool: %w", err)
	}

	researcher := NewGraph(Config{
		Name:          "researcher",
		SystemPrompt:  ResearcherPrompt,
		Model:         model,
		Tools:         subTools,
		MaxToolRounds: opts.MaxToolRounds,
		ToolTimeout:   opts.ToolTimeout,
	})
	explainer := NewGraph(Config{
		Name:          "explainer",
		SystemPrompt:  ExplainerPrompt,
		Model:         model,
		Tools:         subTools,
		MaxToolRounds: opts.MaxToolRounds,
		ToolTimeout:   opts.ToolTimeout,
	})

	delegates, err := tools.NewRegistryWith(
		NewAgentTool(researcher, "researcher",
			"Searches the internet to answer your questions.",
			"query", "query to search for."),
		NewAgentTool(explainer, "explainer",
			"Explains a concept in a simple way using examples, stories and allegories.",
			"concept", "concept to explain."),
	)
	if err != nil {
		return nil, fmt.Errorf("bind sub-agents: %w", err)
	}

	agentTimeout := opts.AgentTimeout
	if agentTimeout <= 0 {
		agentTimeout = 5 * time.Minute
	}
	return NewGraph(Config{
		Name:          "supervisor",
		SystemPrompt:  SupervisorPrompt,
		Model:         model,
		Tools:         delegates,
		MaxToolRounds: opts.MaxToolRounds,
		ToolTimeout:   agentTimeout,
	}), nil
}
