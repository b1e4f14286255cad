// Package flights looks up round-trip flights between two cities.
package flights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const dateLayout = "2006-01-02"

// Names of required fields reported back to the user.
const (
	FieldOrigin       = "departure city"
	FieldDestination  = "destination city"
	FieldOutboundDate = "outbound (departure) date"
	FieldReturnDate   = "return date"
)

var (
	// ErrUnknownCity is returned when a city has no airport in the registry.
	ErrUnknownCity = errors.New("no IATA codes found for city")
	// ErrInvalidDates is returned for malformed or inverted travel dates.
	ErrInvalidDates = errors.New("invalid travel dates")
	// ErrUnparsableExtraction is returned when the model's extraction is not
	// a well-formed flight details object.
	ErrUnparsableExtraction = errors.New("unparsable flight details extraction")
)

// Query is a round-trip flight request. Empty strings mean "not given".
type Query struct {
	Origin       string `json:"origin,omitempty"`
	Destination  string `json:"destination"`
	OutboundDate string `json:"departure_date"`
	ReturnDate   string `json:"return_date"`
}

// Missing lists the required fields that are empty, in reporting order.
// Origin is never required.
func (q Query) Missing() []string {
	var missing []string
	if strings.TrimSpace(q.Destination) == "" {
		missing = append(missing, FieldDestination)
	}
	if strings.TrimSpace(q.OutboundDate) == "" {
		missing = append(missing, FieldOutboundDate)
	}
	if strings.TrimSpace(q.ReturnDate) == "" {
		missing = append(missing, FieldReturnDate)
	}
	return missing
}

// Result is exactly one of Found, NeedsInfo or Failure.
type Result interface {
	Message() string
	isResult()
}

// Found carries the provider's raw JSON answer.
type Found struct {
	Raw json.RawMessage
}

// NeedsInfo lists the fields the user still has to provide.
type NeedsInfo struct {
	Missing []string
}

// Failure wraps an error raised while resolving or calling the provider.
type Failure struct {
	Err error
}

func (Found) isResult()     {}
func (NeedsInfo) isResult() {}
func (Failure) isResult()   {}

func (f Found) Message() string {
	return string(f.Raw)
}

func (n NeedsInfo) Message() string {
	return fmt.Sprintf("[Flight Agent] Unable to process your request. Please provide the following information: %s.",
		strings.Join(n.Missing, ", "))
}

func (f Failure) Message() string {
	return fmt.Sprintf("[Flight Agent] An error occurred while fetching flight information: %v. Please submit your query again.", f.Err)
}

func (f Failure) Error() string {
	if f.Err == nil {
		return "flight lookup failed"
	}
	return f.Err.Error()
}

func (f Failure) Unwrap() error {
	return f.Err
}
