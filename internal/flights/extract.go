package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

const extractionPrompt = "You are a helpful assistant that extracts flight search details from user queries. " +
	"Given a user message, extract the following fields if present: " +
	"destination, departure_date, return_date, and origin. " +
	"Return your answer as a JSON object with these keys. " +
	"Make sure to provide only the bare city name in the 'origin' and 'destination' fields, without province or country. " +
	"Dates must use the YYYY-MM-DD format. " +
	"If a field is missing, use null for its value."

const extractionSchema = `{
  "type": "object",
  "properties": {
    "origin":         {"type": ["string", "null"]},
    "destination":    {"type": ["string", "null"]},
    "departure_date": {"type": ["string", "null"]},
    "return_date":    {"type": ["string", "null"]}
  },
  "required": ["origin", "destination", "departure_date", "return_date"],
  "additionalProperties": false
}`

var (
	codeFenceRe        = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)
	compiledExtraction = mustCompileExtraction()
)

func mustCompileExtraction() *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(extractionSchema))
	if err != nil {
		panic(fmt.Sprintf("compile extraction schema: %v", err))
	}
	return schema
}

type extraction struct {
	Origin        *string `json:"origin"`
	Destination   *string `json:"destination"`
	DepartureDate *string `json:"departure_date"`
	ReturnDate    *string `json:"return_date"`
}

// Extractor turns a free-text flight request into a Query using the LLM.
type Extractor struct {
	model llm.Completer
}

func NewExtractor(model llm.Completer) *Extractor {
	return &Extractor{model: model}
}

// Extract asks the model for the flight details in text and parses its answer
// with ParseExtraction.
func (e *Extractor) Extract(ctx context.Context, text string) (Query, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: extractionPrompt},
		{Role: llm.RoleUser, Content: text},
	}
	raw, err := e.model.Complete(ctx, messages, llm.NewChatCompletionOptions().WithTemperature(0))
	if err != nil {
		return Query{}, fmt.Errorf("extract flight details: %w", err)
	}
	return ParseExtraction(raw)
}

// ParseExtraction strictly decodes the model's JSON answer. Anything other
// than an object holding exactly the four expected keys, each a string or
// null, yields ErrUnparsableExtraction.
func ParseExtraction(raw string) (Query, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return Query{}, fmt.Errorf("%w: empty response", ErrUnparsableExtraction)
	}

	var instance any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrUnparsableExtraction, err)
	}
	if result := compiledExtraction.Validate(instance); !result.IsValid() {
		return Query{}, fmt.Errorf("%w: %s", ErrUnparsableExtraction, result.Error())
	}

	var ex extraction
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrUnparsableExtraction, err)
	}
	return Query{
		Origin:       deref(ex.Origin),
		Destination:  deref(ex.Destination),
		OutboundDate: deref(ex.DepartureDate),
		ReturnDate:   deref(ex.ReturnDate),
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
