package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MimeLyc/travel-concierge/internal/flights"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// FlightLookup answers a structured flight query
type FlightLookup interface {
	Lookup(ctx context.Context, q flights.Query) flights.Result
}

// FlightExtractor turns free text into a structured flight query
type FlightExtractor interface {
	Extract(ctx context.Context, text string) (flights.Query, error)
}

// FlightSearchTool takes structured flight details from the model
type FlightSearchTool struct {
	lookup FlightLookup
}

func NewFlightSearchTool(lookup FlightLookup) *FlightSearchTool {
	return &FlightSearchTool{lookup: lookup}
}

func (t *FlightSearchTool) Name() string {
	return "flight_search"
}

func (t *FlightSearchTool) Description() string {
	return "Searches round-trip flights between two cities. Leave origin null to depart from the user's current country. " +
		"Dates use the YYYY-MM-DD format. Any missing detail is reported back so you can ask the user for it."
}

func (t *FlightSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"origin":         {"type": ["string", "null"], "description": "Departure city name"},
			"destination":    {"type": ["string", "null"], "description": "Arrival city name"},
			"departure_date": {"type": ["string", "null"], "description": "Outbound date, YYYY-MM-DD"},
			"return_date":    {"type": ["string", "null"], "description": "Return date, YYYY-MM-DD"}
		},
		"additionalProperties": false
	}`)
}

func (t *FlightSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var q flights.Query
	if err := json.Unmarshal(args, &q); err != nil {
		return errorResult("Failed to parse flight arguments: %v", err), nil
	}
	return flightResult(t.lookup.Lookup(ctx, q)), nil
}

// FlightInfoTool extracts flight details from a free-text request and looks
// them up
type FlightInfoTool struct {
	extractor FlightExtractor
	lookup    FlightLookup
}

func NewFlightInfoTool(extractor FlightExtractor, lookup FlightLookup) *FlightInfoTool {
	return &FlightInfoTool{extractor: extractor, lookup: lookup}
}

func (t *FlightInfoTool) Name() string {
	return "flight_info"
}

func (t *FlightInfoTool) Description() string {
	return "Provides flight information between locations. Input should specify destination, and departure and return dates."
}

func (t *FlightInfoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"minLength": 1,
				"description": "The user's flight request in their own words"
			}
		},
		"required": ["query"]
	}`)
}

func (t *FlightInfoTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Failed to parse flight arguments: %v", err), nil
	}

	ctx, span := tracing.StartSpan(ctx, "tool.flight_info")
	q, err := t.extractor.Extract(ctx, in.Query)
	tracing.End(span, err)
	if err != nil {
		if errors.Is(err, flights.ErrUnparsableExtraction) {
			log.Warn("Flight details extraction was unparsable: %v", err)
		}
		return flightResult(flights.Failure{Err: err}), nil
	}
	return flightResult(t.lookup.Lookup(ctx, q)), nil
}

func flightResult(res flights.Result) ToolResult {
	_, failed := res.(flights.Failure)
	return ToolResult{Content: res.Message(), IsError: failed}
}
