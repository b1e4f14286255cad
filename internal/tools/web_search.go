package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/MimeLyc/travel-concierge/internal/tracing"
)

const (
	defaultTavilyURL     = "https://api.tavily.com/search"
	defaultSearchResults = 5
)

// SearchResult is one web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchBackend runs a web search query
type SearchBackend interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// TavilyBackend searches with the Tavily API
type TavilyBackend struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// TavilyRequest represents a request to Tavily API
type TavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

// TavilyResponse represents a response from Tavily API
type TavilyResponse struct {
	Query   string         `json:"query"`
	Results []TavilyResult `json:"results"`
}

// TavilyResult represents a single search result
type TavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// NewTavilyBackend creates a Tavily search backend
func NewTavilyBackend(apiKey, apiURL string, timeout time.Duration) *TavilyBackend {
	if apiURL == "" {
		apiURL = defaultTavilyURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyBackend{
		apiKey: apiKey,
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *TavilyBackend) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	request := TavilyRequest{
		APIKey:      b.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var tavilyResp TavilyResponse
	if err := json.Unmarshal(body, &tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return results, nil
}

// WebSearchTool searches the internet and returns English results only
type WebSearchTool struct {
	backend    SearchBackend
	maxResults int
}

// WebSearchArgs represents the arguments for web search
type WebSearchArgs struct {
	Query string `json:"query"`
}

// NewWebSearchTool creates a web search tool over backend
func NewWebSearchTool(backend SearchBackend) *WebSearchTool {
	return &WebSearchTool{backend: backend, maxResults: defaultSearchResults}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the internet for up-to-date information. Returns titles, URLs and snippets of English-language pages."
}

func (t *WebSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"minLength": 1,
				"description": "The search query"
			}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var searchArgs WebSearchArgs
	if err := json.Unmarshal(args, &searchArgs); err != nil {
		return errorResult("Failed to parse search arguments: %v", err), nil
	}

	ctx, span := tracing.StartSpan(ctx, "tool.web_search")
	span.SetAttributes(tracing.StringAttr("search.query", searchArgs.Query))

	results, err := t.backend.Search(ctx, searchArgs.Query, t.maxResults)
	tracing.End(span, err)
	if err != nil {
		return errorResult("Search failed: %v", err), nil
	}

	return ToolResult{Content: formatSearchResults(filterEnglish(results))}, nil
}

// filterEnglish keeps results with a title and body whose text is detected as English.
func filterEnglish(results []SearchResult) []SearchResult {
	kept := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Content) == "" {
			continue
		}
		info := whatlanggo.Detect(r.Title + " " + r.Content)
		if info.Lang != whatlanggo.Eng {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func formatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\nSnippet: %s\n", r.Title, r.URL, r.Content))
	}
	return strings.Join(blocks, "\n---\n")
}
