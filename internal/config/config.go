package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/resilience"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// Config holds all application configuration.
// Values are read in order: defaults, the YAML file named by CONFIG_FILE,
// environment variables (a .env file in the working directory is loaded
// first), then Option funcs.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 1000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.7)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL / LLM_APP_NAME: OpenRouter attribution headers (optional)
//
// Upstream services:
// - SEARCH_API_KEY, SEARCH_API_URL, SEARCH_TIMEOUT: Tavily web search
// - FLIGHTS_API_KEY (or GOOGLE_API_KEY), FLIGHTS_API_URL, FLIGHTS_TIMEOUT: SerpApi
// - GEO_API_URL, GEO_API_TOKEN, GEO_TIMEOUT: ipinfo geolocation
// - BREAKER_MAX_FAILURES, BREAKER_TIMEOUT, BREAKER_INTERVAL: circuit breakers
//
// Agents:
// - CONCIERGE_MODE: router, tools or supervisor (default: router)
// - THREAD_ID: thread used when none is given (default: 2)
// - AGENT_MAX_TOOL_ROUNDS: tool rounds per turn (default: 10)
// - AGENT_TOOL_TIMEOUT: timeout of one tool call (default: 60s)
// - AGENT_SUBAGENT_TIMEOUT: timeout of one supervisor delegation (default: 5m)
// - INTENT_WEATHER_KEYWORDS: classify weather by keywords (default: false)
//
// System:
// - DATA_DIR: directory of the conversation database (default: ./data)
// - AIRPORTS_FILE: airport registry JSON (default: embedded)
// - CONSOLE_ENABLED, CONSOLE_MARKDOWN: interactive console
// - HTTP_ADDR, HTTP_RATE_LIMIT, HTTP_RATE_BURST: HTTP chat surface
// - LOG_LEVEL, LOG_FILE: logging
// - TRACING_ENABLED, TRACING_EXPORTER: OpenTelemetry spans
type Config struct {
	LLM       llm.Config               `json:"llm" yaml:"llm"`
	Search    SearchConfig             `json:"search" yaml:"search"`
	Flights   FlightsConfig            `json:"flights" yaml:"flights"`
	Geo       GeoConfig                `json:"geo" yaml:"geo"`
	Agent     AgentConfig              `json:"agent" yaml:"agent"`
	Intent    IntentConfig             `json:"intent" yaml:"intent"`
	Store     StoreConfig              `json:"store" yaml:"store"`
	Concierge ConciergeConfig          `json:"concierge" yaml:"concierge"`
	Console   ConsoleConfig            `json:"console" yaml:"console"`
	HTTP      HTTPConfig               `json:"http" yaml:"http"`
	Log       LogConfig                `json:"log" yaml:"log"`
	Tracing   tracing.Config           `json:"tracing" yaml:"tracing"`
	Breaker   resilience.BreakerConfig `json:"breaker" yaml:"breaker"`
}

// SearchConfig holds the configuration for web search tool
type SearchConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"` // Tavily API key
	APIURL  string        `json:"api_url" yaml:"api_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// FlightsConfig configures the flight search provider
type FlightsConfig struct {
	APIKey  string                   `json:"api_key" yaml:"api_key"`
	APIURL  string                   `json:"api_url" yaml:"api_url"`
	Timeout time.Duration            `json:"timeout" yaml:"timeout"`
	Breaker resilience.BreakerConfig `json:"breaker" yaml:"breaker"`
}

type GeoConfig struct {
	APIURL  string        `json:"api_url" yaml:"api_url"`
	Token   string        `json:"token" yaml:"token"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// AgentConfig holds the configuration for the agents
type AgentConfig struct {
	MaxToolRounds   int           `json:"max_tool_rounds" yaml:"max_tool_rounds"`
	ToolTimeout     time.Duration `json:"tool_timeout" yaml:"tool_timeout"`
	SubagentTimeout time.Duration `json:"subagent_timeout" yaml:"subagent_timeout"`
}

type IntentConfig struct {
	WeatherKeywords bool `json:"weather_keywords" yaml:"weather_keywords"`
}

type StoreConfig struct {
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	AirportsFile string `json:"airports_file" yaml:"airports_file"`
}

type ConciergeConfig struct {
	Mode     string `json:"mode" yaml:"mode"`
	ThreadID string `json:"thread_id" yaml:"thread_id"`
}

type ConsoleConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	Markdown bool `json:"markdown" yaml:"markdown"`
}

// HTTPConfig enables the HTTP chat surface when Addr is set. RateLimit is in
// requests per second per client.
type HTTPConfig struct {
	Addr      string  `json:"addr" yaml:"addr"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `json:"rate_burst" yaml:"rate_burst"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LLM: llm.Config{
			APIURL:      "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-4o-mini",
			MaxTokens:   1000,
			Temperature: 0.7,
			Timeout:     30,
		},
		Search: SearchConfig{
			APIURL:  "https://api.tavily.com/search",
			Timeout: 30 * time.Second,
		},
		Flights: FlightsConfig{
			APIURL:  "https://serpapi.com/search",
			Timeout: 30 * time.Second,
		},
		Geo: GeoConfig{
			APIURL:  "https://ipinfo.io/json",
			Timeout: 5 * time.Second,
		},
		Agent: AgentConfig{
			MaxToolRounds:   10,
			ToolTimeout:     60 * time.Second,
			SubagentTimeout: 5 * time.Minute,
		},
		Store:     StoreConfig{DataDir: "./data"},
		Concierge: ConciergeConfig{Mode: "router", ThreadID: "2"},
		Console:   ConsoleConfig{Enabled: true},
		HTTP:      HTTPConfig{RateLimit: 2, RateBurst: 5},
		Log:       LogConfig{Level: "info"},
		Tracing:   tracing.Config{Exporter: "stdout"},
		Breaker: resilience.BreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
	}
}

// New loads .env, the optional CONFIG_FILE overlay and the environment.
func New(opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config from CONFIG_FILE, environment variables
// and options, without reading .env.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	for _, opt := range opts {
		opt(config)
	}

	// upstream breakers inherit the shared settings
	if config.LLM.Breaker == (resilience.BreakerConfig{}) {
		config.LLM.Breaker = config.Breaker
	}
	if config.Flights.Breaker == (resilience.BreakerConfig{}) {
		config.Flights.Breaker = config.Breaker
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Info("Config: %s", config)
	return config, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnvString("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	c.Search.APIKey = getEnvString("SEARCH_API_KEY", c.Search.APIKey)
	c.Search.APIURL = getEnvString("SEARCH_API_URL", c.Search.APIURL)
	c.Search.Timeout = getEnvDuration("SEARCH_TIMEOUT", c.Search.Timeout)

	c.Flights.APIKey = getEnvString("GOOGLE_API_KEY", c.Flights.APIKey)
	c.Flights.APIKey = getEnvString("FLIGHTS_API_KEY", c.Flights.APIKey)
	c.Flights.APIURL = getEnvString("FLIGHTS_API_URL", c.Flights.APIURL)
	c.Flights.Timeout = getEnvDuration("FLIGHTS_TIMEOUT", c.Flights.Timeout)

	c.Geo.APIURL = getEnvString("GEO_API_URL", c.Geo.APIURL)
	c.Geo.Token = getEnvString("GEO_API_TOKEN", c.Geo.Token)
	c.Geo.Timeout = getEnvDuration("GEO_TIMEOUT", c.Geo.Timeout)

	c.Agent.MaxToolRounds = getEnvInt("AGENT_MAX_TOOL_ROUNDS", c.Agent.MaxToolRounds)
	c.Agent.ToolTimeout = getEnvDuration("AGENT_TOOL_TIMEOUT", c.Agent.ToolTimeout)
	c.Agent.SubagentTimeout = getEnvDuration("AGENT_SUBAGENT_TIMEOUT", c.Agent.SubagentTimeout)
	c.Intent.WeatherKeywords = getEnvBool("INTENT_WEATHER_KEYWORDS", c.Intent.WeatherKeywords)

	c.Store.DataDir = getEnvString("DATA_DIR", c.Store.DataDir)
	c.Store.AirportsFile = getEnvString("AIRPORTS_FILE", c.Store.AirportsFile)

	c.Concierge.Mode = getEnvString("CONCIERGE_MODE", c.Concierge.Mode)
	c.Concierge.ThreadID = getEnvString("THREAD_ID", c.Concierge.ThreadID)

	c.Console.Enabled = getEnvBool("CONSOLE_ENABLED", c.Console.Enabled)
	c.Console.Markdown = getEnvBool("CONSOLE_MARKDOWN", c.Console.Markdown)

	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.RateLimit = getEnvFloat("HTTP_RATE_LIMIT", c.HTTP.RateLimit)
	c.HTTP.RateBurst = getEnvInt("HTTP_RATE_BURST", c.HTTP.RateBurst)

	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvString("LOG_FILE", c.Log.File)

	c.Tracing.Enabled = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Exporter = getEnvString("TRACING_EXPORTER", c.Tracing.Exporter)

	c.Breaker.MaxFailures = uint32(getEnvInt("BREAKER_MAX_FAILURES", int(c.Breaker.MaxFailures)))
	c.Breaker.Timeout = getEnvDuration("BREAKER_TIMEOUT", c.Breaker.Timeout)
	c.Breaker.Interval = getEnvDuration("BREAKER_INTERVAL", c.Breaker.Interval)
}

// Validate checks if all required configuration is properly set
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	switch c.Concierge.Mode {
	case "", "router", "tools":
	case "supervisor":
		if c.Search.APIKey == "" {
			return fmt.Errorf("SEARCH_API_KEY is required in supervisor mode")
		}
	default:
		return fmt.Errorf("unsupported CONCIERGE_MODE %q (want router, tools or supervisor)", c.Concierge.Mode)
	}
	if c.Agent.MaxToolRounds < 1 {
		return fmt.Errorf("AGENT_MAX_TOOL_ROUNDS must be greater than 0")
	}
	if c.Agent.ToolTimeout <= 0 || c.Agent.SubagentTimeout <= 0 {
		return fmt.Errorf("agent timeouts must be positive")
	}
	if !c.Console.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("nothing to serve: enable the console or set HTTP_ADDR")
	}
	if c.HTTP.Addr != "" && (c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst < 1) {
		return fmt.Errorf("HTTP rate limit and burst must be positive")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	return nil
}

// DBPath is the conversation database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.Store.DataDir, "memory.db")
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("{llm: %s %s key=%s, mode: %s, thread: %s, search key=%s, flights key=%s, data: %s, http: %q, console: %t, tracing: %t}",
		c.LLM.APIURL, c.LLM.Model, mask(c.LLM.APIKey), c.Concierge.Mode, c.Concierge.ThreadID,
		mask(c.Search.APIKey), mask(c.Flights.APIKey), c.Store.DataDir, c.HTTP.Addr, c.Console.Enabled, c.Tracing.Enabled)
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "***"
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or whole seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	log.Warn("Ignoring invalid %s=%q", key, value)
	return defaultValue
}
