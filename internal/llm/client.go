package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/resilience"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
)

// Completer returns the text of a single tool-free completion
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (string, error)
}

// ChatModel is a completion service that can bind tools
type ChatModel interface {
	ChatCompletionWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts *ChatCompletionOptions) (*ChatResponse, error)
}

var (
	_ Completer = (*Client)(nil)
	_ ChatModel = (*Client)(nil)
)

// Client represents a generic OpenAI-compatible LLM API client
// Provides chat completions with and without tool calling
// Thread-safe for concurrent use
//
// config: Configuration for the LLM API
// httpClient: HTTP client for API requests
// baseURL: Base URL for the LLM API
// breaker: Circuit breaker shared by every request of this client
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	breaker    *resilience.Breaker[*ChatResponse]
}

// NewClient creates a new LLM client with the given configuration
//
// config: Configuration for the LLM API
//
// Returns a new Client instance or an error if configuration is invalid
// Example:
//
//	client, err := llm.NewClient(&cfg.LLM)
//	if err != nil {
//		log.Fatal("%v", err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		breaker: resilience.NewBreaker[*ChatResponse]("llm:"+config.Model, config.Breaker),
	}

	return client, nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
//
// ctx: Context for the request
// messages: Array of messages in the conversation
// options: Optional configuration for the request
//
// # Returns the chat completion response or an error
//
// Example:
//
//	messages := []llm.Message{
//		{Role: llm.RoleUser, Content: "Hello, how are you?"},
//	}
//	response, err := client.ChatCompletion(ctx, messages, nil)
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	return c.ChatCompletionWithTools(ctx, messages, nil, opts)
}

// ChatCompletionWithTools creates a chat completion request that lets the
// model request any of the given tools
//
// The returned choice carries either final content (finish_reason "stop") or
// tool calls (finish_reason "tool_calls").
func (c *Client) ChatCompletionWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    RoleSystem,
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	temperature := c.getTemperature(opts)
	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: &temperature,
	}
	if len(tools) > 0 {
		request.ToolChoice = opts.ToolChoice
	}

	ctx, span := tracing.StartSpan(ctx, "llm.chat_completion")
	span.SetAttributes(
		tracing.StringAttr("llm.model", c.config.Model),
		tracing.IntAttr("llm.messages", len(messages)),
		tracing.IntAttr("llm.tools", len(tools)),
	)

	response, err := c.breaker.Execute(func() (*ChatResponse, error) {
		return c.makeRequest(ctx, http.MethodPost, "/chat/completions", request)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return response, nil
}

// Complete sends messages without tools and returns the first choice's content
func (c *Client) Complete(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (string, error) {
	response, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return response.Choices[0].Message.Content, nil
}

// makeRequest makes a raw HTTP request to the configured LLM API
func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for API errors
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return nil, chatResponse.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &chatResponse, nil
}

// getMaxTokens returns the max tokens to use for the request
func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

// getTemperature returns the temperature to use for the request
func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}
