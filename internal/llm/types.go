package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message
//
// Role: "system", "user", "assistant" or "tool"
// Content: Text content of the message
// ToolCalls: Tool invocation requests issued by an assistant message
// ToolCallID: For tool messages, the id of the request this message answers
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether m requests any tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// ToolCall is a model-issued request to run one tool
//
// Function.Arguments is the raw JSON string produced by the model and is not
// guaranteed to match the tool's schema.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a callable tool in OpenAI format
type ToolDefinition struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function is the function part of a ToolDefinition
//
// Parameters: JSON Schema of the arguments object
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest represents a chat completion request
// Compatible with OpenAI API format
//
// Model: The model to use for completion
// Messages: Array of conversation messages
// Tools: Tools the model may call
// MaxTokens: Maximum number of tokens to generate
// Temperature: Sampling temperature (0-2)
type ChatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
//
// ID: Unique identifier for the response
// Object: Always "chat.completion"
// Created: Unix timestamp
// Model: Model used for the response
// Choices: Array of completion choices
// Usage: Token usage statistics
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Choice represents a completion choice
//
// FinishReason values: "stop", "length", "content_filter", "tool_calls"
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error
//
// Message: Error message
// Type: Error type
// Param: Parameter that caused the error
// Code: Error code
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %s)", e.Message, e.Type, e.Code)
}

// ChatCompletionOptions represents options for chat completion
//
// SystemPrompt: System prompt prepended to the messages
// MaxTokens: Maximum tokens for the response, 0 uses the client default
// Temperature: Sampling temperature, negative uses the client default
type ChatCompletionOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	ToolChoice   string
}

// NewChatCompletionOptions creates chat completion options that defer to the client config
func NewChatCompletionOptions() *ChatCompletionOptions {
	return &ChatCompletionOptions{
		MaxTokens:   0,
		Temperature: -1,
	}
}

// WithSystemPrompt sets the system prompt
func (o *ChatCompletionOptions) WithSystemPrompt(prompt string) *ChatCompletionOptions {
	o.SystemPrompt = prompt
	return o
}

// WithMaxTokens sets the max tokens
func (o *ChatCompletionOptions) WithMaxTokens(maxTokens int) *ChatCompletionOptions {
	o.MaxTokens = maxTokens
	return o
}

// WithTemperature sets the temperature
func (o *ChatCompletionOptions) WithTemperature(temperature float64) *ChatCompletionOptions {
	o.Temperature = temperature
	return o
}

// WithToolChoice sets tool_choice ("auto", "none", "required")
func (o *ChatCompletionOptions) WithToolChoice(choice string) *ChatCompletionOptions {
	o.ToolChoice = choice
	return o
}
