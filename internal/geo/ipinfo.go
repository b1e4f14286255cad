// Package geo resolves the caller's home country from its public IP address.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/travel-concierge/pkg/log"
)

const defaultURL = "https://ipinfo.io/json"

// ErrNoCountry is returned when the provider answers without a country.
var ErrNoCountry = errors.New("country information not found in the response")

// Locator returns the caller's two-letter country code.
type Locator interface {
	Country(ctx context.Context) (string, error)
}

// Client queries ipinfo.io. A successful answer is cached for the life of
// the client; concurrent first calls share one request.
type Client struct {
	url        string
	token      string
	timeout    time.Duration
	httpClient *http.Client

	group  singleflight.Group
	mu     sync.RWMutex
	cached string
}

type ipInfoResponse struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// NewClient creates a geolocation client. Empty url selects ipinfo.io.
func NewClient(url, token string, timeout time.Duration) *Client {
	if url == "" {
		url = defaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		token:      token,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Country(ctx context.Context) (string, error) {
	c.mu.RLock()
	cached := c.cached
	c.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	// the shared fetch serves every waiter, so it is detached from the
	// first caller's cancellation and bounded by the client timeout instead
	ch := c.group.DoChan("country", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		country, err := c.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.cached = country
		c.mu.Unlock()
		log.Debug("Geolocated caller country: %s", country)
		return country, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to IP geolocation service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read geolocation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation service returned status %d", resp.StatusCode)
	}

	var info ipInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("parse geolocation response: %w", err)
	}
	country := strings.ToUpper(strings.TrimSpace(info.Country))
	if len(country) != 2 {
		return "", ErrNoCountry
	}
	return country, nil
}
