package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/tools"
)

type echoAdapterTool struct{}

func (echoAdapterTool) Name() string { return "echo" }

func (echoAdapterTool) Description() string { return "Echo back input arguments." }

func (echoAdapterTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string"}
		},
		"required": ["text"]
	}`)
}

func (echoAdapterTool) Execute(_ context.Context, args json.RawMessage) (tools.ToolResult, error) {
	return tools.ToolResult{Content: string(args)}, nil
}

type slowTool struct{}

func (slowTool) Name() string                { return "slow" }
func (slowTool) Description() string         { return "Waits for its context." }
func (slowTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (slowTool) Execute(ctx context.Context, _ json.RawMessage) (tools.ToolResult, error) {
	<-ctx.Done()
	return tools.ToolResult{}, ctx.Err()
}

// scriptedModel replays canned assistant messages and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	replies   []llm.Message
	fallback  *llm.Message
	requests  [][]llm.Message
	toolNames [][]string
	choices   []string
}

func (m *scriptedModel) ChatCompletionWithTools(_ context.Context, messages []llm.Message, defs []llm.ToolDefinition, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts != nil {
		m.choices = append(m.choices, opts.ToolChoice)
	}
	m.requests = append(m.requests, messages)
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Function.Name)
	}
	m.toolNames = append(m.toolNames, names)

	var reply llm.Message
	switch {
	case len(m.replies) > 0:
		reply = m.replies[0]
		m.replies = m.replies[1:]
	case m.fallback != nil:
		reply = *m.fallback
	default:
		return nil, errors.New("script exhausted")
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: reply}}}, nil
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.FunctionCall{Name: name, Arguments: args}}
}

func answer(text string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: text}
}

func callsTools(calls ...llm.ToolCall) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
}

func echoRegistry(t *testing.T, extra ...tools.Tool) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistryWith(append([]tools.Tool{echoAdapterTool{}}, extra...)...)
	require.NoError(t, err)
	return r
}

func TestGraph_NoToolCallsIsOneRound(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{answer("hello there")}}
	g := NewGraph(Config{Name: "test", SystemPrompt: "be nice", Model: model, Tools: echoRegistry(t)})

	result, err := g.Run(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Content)
	assert.Equal(t, 1, result.Rounds)
	assert.Empty(t, result.ToolCalls)

	require.Len(t, model.requests, 1)
	sent := model.requests[0]
	require.Len(t, sent, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "be nice"}, sent[0])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hi"}, sent[1])
	assert.Equal(t, []string{"echo"}, model.toolNames[0])
	assert.Equal(t, []string{"auto"}, model.choices)

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		answer("hello there"),
	}, result.Messages)
}

func TestGraph_OneToolCallIsOneExtraRound(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(toolCall("call_1", "echo", `{"text":"hello"}`)),
		answer("done"),
	}}
	g := NewGraph(Config{Model: model, Tools: echoRegistry(t)})

	result, err := g.Run(context.Background(), nil, "say hello")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content)
	assert.Equal(t, 2, result.Rounds)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, ToolCallRecord{ID: "call_1", ToolName: "echo", Arguments: `{"text":"hello"}`, Result: `{"text":"hello"}`}, result.ToolCalls[0])

	second := model.requests[1]
	toolMsg := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	assert.Equal(t, `{"text":"hello"}`, toolMsg.Content)

	require.Len(t, result.Messages, 4)
	assert.Equal(t, []string{llm.RoleUser, llm.RoleAssistant, llm.RoleTool, llm.RoleAssistant},
		[]string{result.Messages[0].Role, result.Messages[1].Role, result.Messages[2].Role, result.Messages[3].Role})
}

func TestGraph_HistoryIsSentAndNotReturned(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{answer("Tokyo again?")}}
	g := NewGraph(Config{SystemPrompt: "sys", Model: model})

	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "stale system prompt"},
		{Role: llm.RoleUser, Content: "weather in Tokyo"},
		answer("Sunny."),
	}
	result, err := g.Run(context.Background(), history, "and tomorrow?")
	require.NoError(t, err)

	sent := model.requests[0]
	require.Len(t, sent, 4)
	assert.Equal(t, "sys", sent[0].Content)
	assert.Equal(t, "weather in Tokyo", sent[1].Content)
	assert.Equal(t, "and tomorrow?", sent[3].Content)
	assert.Len(t, result.Messages, 2)
}

func TestGraph_MultipleCallsInOneRoundKeepOrder(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(
			toolCall("a", "echo", `{"text":"1"}`),
			toolCall("b", "echo", `{"text":"2"}`),
			toolCall("c", "echo", `{"text":"3"}`),
		),
		answer("ok"),
	}}
	result, err := NewGraph(Config{Model: model, Tools: echoRegistry(t)}).Run(context.Background(), nil, "go")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rounds)

	ids := make([]string, 0, 3)
	for _, r := range result.ToolCalls {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestGraph_AssignsMissingToolCallIDs(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(toolCall("", "echo", `{"text":"x"}`), toolCall("", "echo", `{"text":"y"}`)),
		answer("ok"),
	}}
	result, err := NewGraph(Config{Model: model, Tools: echoRegistry(t)}).Run(context.Background(), nil, "go")
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 2)
	assert.True(t, strings.HasPrefix(result.ToolCalls[0].ID, "call_"))
	assert.NotEqual(t, result.ToolCalls[0].ID, result.ToolCalls[1].ID)
}

func TestGraph_UnknownToolIsFatal(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(toolCall("call_1", "echo", `{"text":"x"}`), toolCall("call_2", "teleport", `{}`)),
		answer("should not be reached"),
	}}
	result, err := NewGraph(Config{Model: model, Tools: echoRegistry(t)}).Run(context.Background(), nil, "go")
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "teleport")
	assert.Nil(t, result)
	assert.Len(t, model.requests, 1)
}

func TestGraph_MaxToolRounds(t *testing.T) {
	loop := callsTools(toolCall("call", "echo", `{"text":"again"}`))
	model := &scriptedModel{fallback: &loop}
	g := NewGraph(Config{Model: model, Tools: echoRegistry(t), MaxToolRounds: 3})

	result, err := g.Run(context.Background(), nil, "loop forever")
	require.ErrorIs(t, err, ErrMaxToolRounds)
	assert.Nil(t, result)
	// three tool rounds, then the fourth model reply asks for more
	assert.Len(t, model.requests, 4)
}

func TestGraph_SchemaMismatchIsReportedToModel(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(toolCall("call_1", "echo", `{"wrong":1}`)),
		answer("fixed"),
	}}
	result, err := NewGraph(Config{Model: model, Tools: echoRegistry(t)}).Run(context.Background(), nil, "go")
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].IsError)
	assert.Contains(t, result.ToolCalls[0].Result, "arguments do not match the echo schema")
}

func TestGraph_ToolTimeout(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{
		callsTools(toolCall("call_1", "slow", `{}`)),
		answer("gave up"),
	}}
	g := NewGraph(Config{Model: model, Tools: echoRegistry(t, slowTool{}), ToolTimeout: 20 * time.Millisecond})

	start := time.Now()
	result, err := g.Run(context.Background(), nil, "go")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].IsError)
	assert.Contains(t, result.ToolCalls[0].Result, "deadline exceeded")
}

func TestGraph_ModelError(t *testing.T) {
	_, err := NewGraph(Config{Model: &scriptedModel{}}).Run(context.Background(), nil, "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM call failed at round 1")
}

func TestGraph_InvalidHistory(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleTool, ToolCallID: "orphan", Content: "x"}}
	_, err := NewGraph(Config{Model: &scriptedModel{}}).Run(context.Background(), history, "go")
	require.ErrorIs(t, err, ErrUnmatchedToolResult)

	// a stored turn that stops after the tool requests cannot be resumed
	history = []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		callsTools(toolCall("a", "echo", "{}")),
	}
	model := &scriptedModel{}
	_, err = NewGraph(Config{Model: model}).Run(context.Background(), history, "go")
	require.ErrorIs(t, err, ErrUnmatchedToolResult)
	assert.Contains(t, err.Error(), "1 tool request(s) left unanswered")
	assert.Empty(t, model.requests)
}

func TestTranscript_RejectsUnmatchedResults(t *testing.T) {
	tr, err := NewTranscript(
		llm.Message{Role: llm.RoleUser, Content: "hi"},
		callsTools(toolCall("a", "echo", "{}"), toolCall("b", "echo", "{}")),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Pending())

	require.NoError(t, tr.Append(llm.Message{Role: llm.RoleTool, ToolCallID: "a"}))
	err = tr.Append(llm.Message{Role: llm.RoleTool, ToolCallID: "a"})
	require.ErrorIs(t, err, ErrUnmatchedToolResult)
	err = tr.Append(llm.Message{Role: llm.RoleTool, ToolCallID: "zzz"})
	require.ErrorIs(t, err, ErrUnmatchedToolResult)
	require.NoError(t, tr.Append(llm.Message{Role: llm.RoleTool, ToolCallID: "b"}))
	assert.Equal(t, 0, tr.Pending())
	assert.Equal(t, 4, tr.Len())

	// requests of an older assistant message cannot be answered later
	tr, err = NewTranscript(callsTools(toolCall("old", "echo", "{}")), answer("moved on"))
	require.NoError(t, err)
	require.ErrorIs(t, tr.Append(llm.Message{Role: llm.RoleTool, ToolCallID: "old"}), ErrUnmatchedToolResult)
}

func TestAgentTool(t *testing.T) {
	model := &scriptedModel{replies: []llm.Message{answer("Rome declined slowly.")}}
	sub := NewGraph(Config{Name: "researcher", SystemPrompt: ResearcherPrompt, Model: model})
	tool := NewAgentTool(sub, "researcher", "Searches the internet.", "query", "query to search for.")

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))
	assert.Equal(t, []any{"query"}, schema["required"])

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"Roman Empire decline"}`))
	require.NoError(t, err)
	assert.Equal(t, "Rome declined slowly.", res.Content)
	assert.Equal(t, "Roman Empire decline", model.requests[0][1].Content)
}

// routingModel answers by system prompt so one fake can drive the supervisor
// and both sub-agents.
type routingModel struct {
	mu    sync.Mutex
	calls map[string]int
	// researcherTool overrides the tool the researcher asks for
	researcherTool string
}

func (m *routingModel) ChatCompletionWithTools(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition, _ *llm.ChatCompletionOptions) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	system := messages[0].Content
	last := messages[len(messages)-1]

	var reply llm.Message
	switch system {
	case SupervisorPrompt:
		m.calls["supervisor"]++
		switch m.calls["supervisor"] {
		case 1:
			reply = callsTools(toolCall("r1", "researcher", `{"query":"entropy"}`))
		case 2:
			reply = callsTools(toolCall("e1", "explainer", `{"concept":"entropy"}`))
		default:
			reply = answer("Entropy is messiness. " + last.Content)
		}
	case ResearcherPrompt:
		m.calls["researcher"]++
		if last.Role == llm.RoleUser {
			name := "web_search"
			if m.researcherTool != "" {
				name = m.researcherTool
			}
			reply = callsTools(toolCall("s1", name, `{"query":"entropy physics"}`))
		} else {
			reply = answer("research: " + last.Content)
		}
	case ExplainerPrompt:
		m.calls["explainer"]++
		reply = answer("like a messy room")
	default:
		return nil, errors.New("unexpected prompt")
	}
	return &llm.ChatResponse{Choices: []llm.Choice{{Message: reply}}}, nil
}

type fakeSearch struct{ queries int32 }

func (f *fakeSearch) Name() string        { return "web_search" }
func (f *fakeSearch) Description() string { return "search" }
func (f *fakeSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)
}
func (f *fakeSearch) Execute(context.Context, json.RawMessage) (tools.ToolResult, error) {
	atomic.AddInt32(&f.queries, 1)
	return tools.ToolResult{Content: "Title: Entropy\nURL: https://example.com\nSnippet: disorder\n"}, nil
}

func TestSupervisor_LoopsUntilToolFreeAnswer(t *testing.T) {
	model := &routingModel{}
	search := &fakeSearch{}
	sup, err := NewSupervisor(model, search, SupervisorOptions{})
	require.NoError(t, err)
	assert.Equal(t, "supervisor", sup.Name())

	result, err := sup.Run(context.Background(), nil, "Explain entropy")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rounds)
	assert.Equal(t, "Entropy is messiness. like a messy room", result.Content)
	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "researcher", result.ToolCalls[0].ToolName)
	assert.Contains(t, result.ToolCalls[0].Result, "research: Title: Entropy")
	assert.Equal(t, "explainer", result.ToolCalls[1].ToolName)
	assert.Equal(t, int32(1), atomic.LoadInt32(&search.queries))
}

func TestSupervisor_SubAgentUnknownToolFailsTurn(t *testing.T) {
	model := &routingModel{researcherTool: "does_not_exist"}
	search := &fakeSearch{}
	sup, err := NewSupervisor(model, search, SupervisorOptions{})
	require.NoError(t, err)

	result, err := sup.Run(context.Background(), nil, "Explain entropy")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), `"does_not_exist"`)

	// the supervisor never got a second round
	assert.Equal(t, 1, model.calls["supervisor"])
	assert.Zero(t, atomic.LoadInt32(&search.queries))
}

func TestSupervisor_RoundLimit(t *testing.T) {
	model := &routingModel{}
	sup, err := NewSupervisor(model, &fakeSearch{}, SupervisorOptions{MaxToolRounds: 1})
	require.NoError(t, err)

	// the second delegation needs a second tool round
	_, err = sup.Run(context.Background(), nil, "Explain entropy")
	require.ErrorIs(t, err, ErrMaxToolRounds)
}

func TestGraph_WithLLMClient(t *testing.T) {
	var callCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		switch atomic.AddInt32(&callCount, 1) {
		case 1:
			_, _ = w.Write([]byte(`{
				"id":"chatcmpl-1",
				"model":"test-model",
				"choices":[{
					"index":0,
					"finish_reason":"tool_calls",
					"message":{
						"role":"assistant",
						"content":"",
						"tool_calls":[{
							"id":"call_1",
							"type":"function",
							"function":{"name":"echo","arguments":"{\"text\":\"hello\"}"}
						}]
					}
				}]
			}`))
		default:
			_, _ = w.Write([]byte(`{
				"id":"chatcmpl-2",
				"model":"test-model",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}]
			}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := llm.NewClient(&llm.Config{
		APIKey:      "test-key",
		APIURL:      server.URL,
		Model:       "test-model",
		MaxTokens:   128,
		Temperature: 0.1,
		Timeout:     5,
	})
	require.NoError(t, err)

	result, err := NewGraph(Config{Model: client, Tools: echoRegistry(t)}).Run(context.Background(), nil, "say hello")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Content)
	assert.Equal(t, 2, result.Rounds)
	assert.Equal(t, int32(2), atomic.LoadInt32(&callCount))
}
