package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/resilience"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
)

const defaultSerpAPIURL = "https://serpapi.com/search"

// SearchParams is one round-trip search against the provider.
type SearchParams struct {
	DepartureCodes []string
	ArrivalCodes   []string
	OutboundDate   string
	ReturnDate     string
}

// Provider answers flight searches with the provider's raw JSON.
type Provider interface {
	Search(ctx context.Context, params SearchParams) (json.RawMessage, error)
}

// SerpAPIClient queries the SerpApi Google Flights engine.
type SerpAPIClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker[json.RawMessage]
}

// NewSerpAPIClient creates a provider client. Empty apiURL selects serpapi.com.
func NewSerpAPIClient(apiKey, apiURL string, timeout time.Duration, breaker resilience.BreakerConfig) *SerpAPIClient {
	if apiURL == "" {
		apiURL = defaultSerpAPIURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerpAPIClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewBreaker[json.RawMessage]("serpapi", breaker),
	}
}

func (c *SerpAPIClient) Search(ctx context.Context, params SearchParams) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "flights.serpapi.search")
	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.search(ctx, params)
	})
	tracing.End(span, err)
	return raw, err
}

func (c *SerpAPIClient) search(ctx context.Context, params SearchParams) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("engine", "google_flights")
	q.Set("hl", "en")
	q.Set("departure_id", strings.Join(params.DepartureCodes, ","))
	q.Set("arrival_id", strings.Join(params.ArrivalCodes, ","))
	q.Set("outbound_date", params.OutboundDate)
	q.Set("return_date", params.ReturnDate)
	q.Set("currency", "USD")
	q.Set("type", "1")
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flight search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// SerpApi reports request problems as {"error": "..."}.
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("flight provider error (status %d): %s", resp.StatusCode, apiErr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flight provider returned status %d", resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("flight provider returned invalid JSON")
	}
	return json.RawMessage(body), nil
}
