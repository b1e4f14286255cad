package service

import (
	"fmt"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/intent"
	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
	"github.com/MimeLyc/travel-concierge/internal/synth"
	"github.com/MimeLyc/travel-concierge/internal/tools"
)

// Mode selects how a turn is answered
type Mode string

const (
	// ModeRouter classifies each message and dispatches to a specialist
	ModeRouter Mode = "router"
	// ModeTools answers with one assistant bound to every travel tool
	ModeTools Mode = "tools"
	// ModeSupervisor delegates to a researcher and an explainer
	ModeSupervisor Mode = "supervisor"
)

// ParseMode validates a mode name; empty selects ModeRouter
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeRouter, nil
	case ModeRouter, ModeTools, ModeSupervisor:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unsupported concierge mode %q (want router, tools or supervisor)", s)
	}
}

// Agent labels shown next to answers
const (
	LabelWeather = "Weather Agent"
	LabelTravel  = "Travel Agent"
	LabelFlight  = "Flight Agent"
	LabelDefault = "Agent"
)

// Model is the completion service used by every agent
type Model interface {
	llm.ChatModel
	llm.Completer
}

// Config tunes the concierge
type Config struct {
	Mode            Mode
	DefaultThreadID string
	MaxToolRounds   int
	ToolTimeout     time.Duration
	AgentTimeout    time.Duration
	WeatherKeywords bool
}

// Dependencies are the collaborators a concierge is built from. Search is
// required in supervisor mode only.
type Dependencies struct {
	Model     Model
	Store     persistence.Store
	Generator *synth.Generator
	Flights   tools.FlightLookup
	Extractor tools.FlightExtractor
	Search    tools.Tool
}

// Reply is the answer to one turn
type Reply struct {
	ThreadID string        `json:"thread_id"`
	Agent    string        `json:"agent"`
	Intent   intent.Intent `json:"intent,omitempty"`
	Answer   string        `json:"answer"`
}
