package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/tools"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// Graph runs the model/tool loop for one agent
type Graph struct {
	name          string
	systemPrompt  string
	model         llm.ChatModel
	registry      *tools.Registry
	maxToolRounds int
	toolTimeout   time.Duration
}

// NewGraph creates a graph from cfg, filling defaults
func NewGraph(cfg Config) *Graph {
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	return &Graph{
		name:          cfg.Name,
		systemPrompt:  cfg.SystemPrompt,
		model:         cfg.Model,
		registry:      cfg.Tools,
		maxToolRounds: cfg.MaxToolRounds,
		toolTimeout:   cfg.ToolTimeout,
	}
}

// Name returns the graph's label
func (g *Graph) Name() string {
	return g.name
}

// Run executes one turn: history plus the new user input, looping between
// the model and the bound tools until the model answers without tool calls.
func (g *Graph) Run(ctx context.Context, history []llm.Message, input string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.run")
	span.SetAttributes(tracing.StringAttr("agent.name", g.name))

	result, err := g.run(ctx, history, input)
	if result != nil {
		span.SetAttributes(tracing.IntAttr("agent.rounds", result.Rounds))
	}
	tracing.End(span, err)
	return result, err
}

func (g *Graph) run(ctx context.Context, history []llm.Message, input string) (*Result, error) {
	seed := make([]llm.Message, 0, len(history)+1)
	if g.systemPrompt != "" {
		seed = append(seed, llm.Message{Role: llm.RoleSystem, Content: g.systemPrompt})
	}
	for _, m := range history {
		if m.Role == llm.RoleSystem {
			continue
		}
		seed = append(seed, m)
	}
	transcript, err := NewTranscript(seed...)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid history: %w", g.name, err)
	}
	if n := transcript.Pending(); n > 0 {
		return nil, fmt.Errorf("%s: invalid history: %w: %d tool request(s) left unanswered", g.name, ErrUnmatchedToolResult, n)
	}
	turnStart := transcript.Len()
	if err := transcript.Append(llm.Message{Role: llm.RoleUser, Content: input}); err != nil {
		return nil, err
	}

	result := &Result{ToolCalls: make([]ToolCallRecord, 0)}
	toolDefs := g.registry.ToOpenAIFormat()
	toolRounds := 0
	state := StateAwaitingModel

	for state != StateDone {
		switch state {
		case StateAwaitingModel:
			result.Rounds++
			msg, err := g.callModel(ctx, transcript, toolDefs, result.Rounds)
			if err != nil {
				return nil, err
			}
			if err := transcript.Append(msg); err != nil {
				return nil, err
			}
			if !msg.HasToolCalls() {
				result.Content = msg.Content
				state = StateDone
				continue
			}
			if toolRounds >= g.maxToolRounds {
				return nil, fmt.Errorf("%s: %w (limit %d)", g.name, ErrMaxToolRounds, g.maxToolRounds)
			}
			state = StateAwaitingToolResult

		case StateAwaitingToolResult:
			last, _ := transcript.Last()
			records, err := g.executeTools(ctx, last.ToolCalls)
			if err != nil {
				return nil, err
			}
			for _, record := range records {
				if err := transcript.Append(llm.Message{
					Role:       llm.RoleTool,
					Content:    record.Result,
					ToolCallID: record.ID,
				}); err != nil {
					return nil, err
				}
				result.ToolCalls = append(result.ToolCalls, record)
			}
			toolRounds++
			state = StateAwaitingModel
		}
	}

	result.Messages = transcript.Messages()[turnStart:]
	return result, nil
}

func (g *Graph) callModel(ctx context.Context, transcript *Transcript, toolDefs []llm.ToolDefinition, round int) (llm.Message, error) {
	opts := llm.NewChatCompletionOptions()
	if len(toolDefs) > 0 {
		opts = opts.WithToolChoice("auto")
	}
	resp, err := g.model.ChatCompletionWithTools(ctx, transcript.Messages(), toolDefs, opts)
	if err != nil {
		return llm.Message{}, fmt.Errorf("LLM call failed at round %d: %w", round, err)
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices in response at round %d", round)
	}

	msg := resp.Choices[0].Message
	msg.Role = llm.RoleAssistant
	seen := make(map[string]bool, len(msg.ToolCalls))
	for i := range msg.ToolCalls {
		tc := &msg.ToolCalls[i]
		if tc.ID == "" || seen[tc.ID] {
			tc.ID = "call_" + ulid.Make().String()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		seen[tc.ID] = true
	}
	return msg, nil
}

// executeTools resolves every request before running any of them, then
// runs them concurrently. Records keep request order.
func (g *Graph) executeTools(ctx context.Context, calls []llm.ToolCall) ([]ToolCallRecord, error) {
	resolved := make([]tools.Tool, len(calls))
	for i, tc := range calls {
		tool, ok := g.registry.Get(tc.Function.Name)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", g.name, ErrUnknownTool, tc.Function.Name)
		}
		resolved[i] = tool
	}

	records := make([]ToolCallRecord, len(calls))
	var eg errgroup.Group
	for i, tc := range calls {
		eg.Go(func() error {
			record, err := g.executeTool(ctx, resolved[i], tc)
			records[i] = record
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// isTurnFatal reports errors a delegated agent must not hide from its
// caller.
func isTurnFatal(err error) bool {
	return errors.Is(err, ErrUnknownTool) ||
		errors.Is(err, ErrMaxToolRounds) ||
		errors.Is(err, ErrUnmatchedToolResult)
}

// executeTool turns tool failures into error results, except the fatal ones
// raised by a nested agent, which end the round.
func (g *Graph) executeTool(ctx context.Context, tool tools.Tool, toolCall llm.ToolCall) (ToolCallRecord, error) {
	record := ToolCallRecord{
		ID:        toolCall.ID,
		ToolName:  toolCall.Function.Name,
		Arguments: toolCall.Function.Arguments,
	}

	ctx, cancel := context.WithTimeout(ctx, g.toolTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "agent.tool")
	span.SetAttributes(tracing.StringAttr("tool.name", record.ToolName))

	result, err := tool.Execute(ctx, json.RawMessage(toolCall.Function.Arguments))
	tracing.End(span, err)
	if err != nil && isTurnFatal(err) {
		return record, fmt.Errorf("%s: tool %s: %w", g.name, record.ToolName, err)
	}
	if err != nil {
		record.Result = fmt.Sprintf("Tool execution error: %v", err)
		record.IsError = true
	} else {
		record.Result = result.Content
		record.IsError = result.IsError
	}

	log.Info("[%s] Tool %s executed: error=%v", g.name, record.ToolName, record.IsError)
	return record, nil
}
