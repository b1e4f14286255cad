package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	results []SearchResult
	err     error
	query   string
	max     int
}

func (f *fakeBackend) Search(_ context.Context, query string, maxResults int) ([]SearchResult, error) {
	f.query = query
	f.max = maxResults
	return f.results, f.err
}

func TestWebSearchTool_Parameters(t *testing.T) {
	tool := NewWebSearchTool(&fakeBackend{})
	assert.Equal(t, "web_search", tool.Name())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))
	assert.Equal(t, "object", schema["type"])
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, schema["required"].([]any), "query")
}

func TestWebSearchTool_FiltersAndFormats(t *testing.T) {
	backend := &fakeBackend{results: []SearchResult{
		{Title: "Photosynthesis explained", URL: "https://en.example.com/a", Content: "Plants use sunlight to turn water and carbon dioxide into sugar and oxygen."},
		{Title: "", URL: "https://example.com/empty", Content: "A page without any title should never be shown to the model."},
		{Title: "La photosynthèse", URL: "https://fr.example.com/b", Content: "Les plantes utilisent la lumière du soleil pour fabriquer leur nourriture et produire de l'oxygène."},
		{Title: "Empty body", URL: "https://example.com/c", Content: "   "},
	}}
	tool := NewWebSearchTool(backend)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"photosynthesis"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, "photosynthesis", backend.query)
	assert.Equal(t, 5, backend.max)
	assert.Equal(t,
		"Title: Photosynthesis explained\nURL: https://en.example.com/a\nSnippet: Plants use sunlight to turn water and carbon dioxide into sugar and oxygen.\n",
		result.Content)
}

func TestWebSearchTool_NoResults(t *testing.T) {
	tool := NewWebSearchTool(&fakeBackend{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"nothing"}`))
	require.NoError(t, err)
	assert.Equal(t, "No results found.", result.Content)
}

func TestWebSearchTool_JoinsMultipleResults(t *testing.T) {
	out := formatSearchResults([]SearchResult{
		{Title: "A", URL: "u1", Content: "c1"},
		{Title: "B", URL: "u2", Content: "c2"},
	})
	assert.Equal(t, "Title: A\nURL: u1\nSnippet: c1\n\n---\nTitle: B\nURL: u2\nSnippet: c2\n", out)
}

func TestWebSearchTool_BackendError(t *testing.T) {
	tool := NewWebSearchTool(&fakeBackend{err: errors.New("quota exceeded")})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Search failed")
	assert.Contains(t, result.Content, "quota exceeded")
}

func TestWebSearchTool_InvalidJSON(t *testing.T) {
	tool := NewWebSearchTool(&fakeBackend{})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{invalid`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Failed to parse search arguments")
}

func TestTavilyBackend_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req TavilyRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-key", req.APIKey)
		assert.Equal(t, "tokyo travel", req.Query)
		assert.Equal(t, 5, req.MaxResults)

		_ = json.NewEncoder(w).Encode(TavilyResponse{
			Query: req.Query,
			Results: []TavilyResult{
				{Title: "Tokyo guide", URL: "https://example.com/tokyo", Content: "Things to do in Tokyo", Score: 0.9},
			},
		})
	}))
	defer server.Close()

	backend := NewTavilyBackend("test-key", server.URL, time.Second)
	results, err := backend.Search(context.Background(), "tokyo travel", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Tokyo guide", results[0].Title)
	assert.Equal(t, "https://example.com/tokyo", results[0].URL)
}

func TestTavilyBackend_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	_, err := NewTavilyBackend("bad", server.URL, time.Second).Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestTavilyBackend_DefaultURL(t *testing.T) {
	backend := NewTavilyBackend("k", "", 0)
	assert.Equal(t, defaultTavilyURL, backend.apiURL)
	assert.Equal(t, 30*time.Second, backend.httpClient.Timeout)
}

// TestTavilyIntegration hits the real API and is skipped without SEARCH_API_KEY
func TestTavilyIntegration(t *testing.T) {
	apiKey := os.Getenv("SEARCH_API_KEY")
	if apiKey == "" {
		t.Skip("Set SEARCH_API_KEY environment variable to run this test")
	}

	tool := NewWebSearchTool(NewTavilyBackend(apiKey, "", 0))
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"what is photosynthesis"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.NotEmpty(t, result.Content)
}
