package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MimeLyc/travel-concierge/internal/synth"
)

const cityNameSchema = `{
	"type": "object",
	"properties": {
		"city_name": {
			"type": "string",
			"minLength": 1,
			"description": "The name of the city. Supported cities include major cities from North America, South America, Europe, Asia, and Africa."
		}
	},
	"required": ["city_name"]
}`

type cityArgs struct {
	CityName string `json:"city_name"`
}

// WeatherTool renders a synthetic 7-day forecast for a supported city
type WeatherTool struct {
	gen *synth.Generator
}

func NewWeatherTool(gen *synth.Generator) *WeatherTool {
	return &WeatherTool{gen: gen}
}

func (t *WeatherTool) Name() string {
	return "weather_by_city_search"
}

func (t *WeatherTool) Description() string {
	return "Renders a 7-day weather forecast for a supported city. Your response should include the current weather, a weekly forecast, and summary statistics."
}

func (t *WeatherTool) Parameters() json.RawMessage {
	return json.RawMessage(cityNameSchema)
}

func (t *WeatherTool) Execute(_ context.Context, args json.RawMessage) (ToolResult, error) {
	var in cityArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Failed to parse weather arguments: %v", err), nil
	}
	report, err := t.gen.Weather(in.CityName)
	if err != nil {
		return unsupportedCity(err)
	}
	return jsonResult(report)
}

// EventsTool renders synthetic cultural events for a supported city
type EventsTool struct {
	gen *synth.Generator
}

func NewEventsTool(gen *synth.Generator) *EventsTool {
	return &EventsTool{gen: gen}
}

func (t *EventsTool) Name() string {
	return "event_by_city_search"
}

func (t *EventsTool) Description() string {
	return "Renders a list of cultural events for a supported city. Your response should include a list of events with their details."
}

func (t *EventsTool) Parameters() json.RawMessage {
	return json.RawMessage(cityNameSchema)
}

func (t *EventsTool) Execute(_ context.Context, args json.RawMessage) (ToolResult, error) {
	var in cityArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Failed to parse event arguments: %v", err), nil
	}
	report, err := t.gen.Events(in.CityName)
	if err != nil {
		return unsupportedCity(err)
	}
	return jsonResult(report)
}

// SupportedCitiesTool lists the supported cities and their continents
type SupportedCitiesTool struct{}

func NewSupportedCitiesTool() *SupportedCitiesTool {
	return &SupportedCitiesTool{}
}

func (t *SupportedCitiesTool) Name() string {
	return "supported_cities_search"
}

func (t *SupportedCitiesTool) Description() string {
	return "Renders a list of supported cities and the continent each belongs to. Supported cities include major cities from North America, South America, Europe, Asia, and Africa."
}

func (t *SupportedCitiesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *SupportedCitiesTool) Execute(context.Context, json.RawMessage) (ToolResult, error) {
	return jsonResult(synth.SupportedCities())
}

// unsupportedCity renders the soft {"error": ...} payload the model reads
// instead of a record. Other errors are faults.
func unsupportedCity(err error) (ToolResult, error) {
	var unsupported *synth.UnsupportedCityError
	if !errors.As(err, &unsupported) {
		return ToolResult{}, err
	}
	return jsonResult(synth.ErrorPayload{Error: unsupported.Error()})
}
