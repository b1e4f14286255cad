package agent

import (
	"errors"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/tools"
)

const (
	// DefaultMaxToolRounds bounds how many times one turn may execute tools.
	DefaultMaxToolRounds = 10
	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 60 * time.Second
)

var (
	// ErrUnknownTool is returned when the model requests a tool that is not
	// bound to the graph. It ends the turn.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMaxToolRounds is returned when the model still requests tools after
	// the round limit.
	ErrMaxToolRounds = errors.New("max tool rounds exceeded")
	// ErrUnmatchedToolResult is returned when a tool message does not answer
	// a pending request of the preceding assistant message.
	ErrUnmatchedToolResult = errors.New("tool result does not match a pending request")
)

// State is a node of the turn state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateAwaitingToolResult
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting-model"
	case StateAwaitingToolResult:
		return "awaiting-tool-result"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config describes one agent graph
type Config struct {
	// Name labels logs and spans
	Name string

	// SystemPrompt is prepended to every model call
	SystemPrompt string

	// Model is the completion service
	Model llm.ChatModel

	// Tools are bound to every model call; nil binds none
	Tools *tools.Registry

	// MaxToolRounds is the tool-execution round limit
	// Default: 10
	MaxToolRounds int

	// ToolTimeout bounds each tool execution
	// Default: 60s
	ToolTimeout time.Duration
}

// Result represents the outcome of one turn
type Result struct {
	// Content is the final text response from the agent
	Content string

	// Messages holds the user message and everything appended after it,
	// in order. The system message and prior history are not included.
	Messages []llm.Message

	// ToolCalls contains a record of all tool calls made during execution
	ToolCalls []ToolCallRecord

	// Rounds is the number of model calls made
	Rounds int
}

// ToolCallRecord records a single tool call and its result
type ToolCallRecord struct {
	// ID is the request id the result was tagged with
	ID string

	// ToolName is the name of the tool that was called
	ToolName string

	// Arguments is the JSON arguments passed to the tool
	Arguments string

	// Result is the output from the tool
	Result string

	// IsError indicates if the tool execution resulted in an error
	IsError bool
}
