// Package intent decides which specialist should answer a user message.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// Intent is the outcome of classification.
type Intent string

const (
	Weather    Intent = "weather"
	TravelTips Intent = "travel"
	Flight     Intent = "flight"
	None       Intent = "none"
)

// FallbackReply is returned when no specialist matches.
const FallbackReply = "I am currently being updated to handle weather, travel, and flight information."

const (
	weatherPrompt = "You are an intent classifier. " +
		"If the following message is asking about weather, temperature, climate, or atmospheric conditions, respond ONLY with 'yes'. " +
		"Otherwise, respond ONLY with 'no'."

	travelPrompt = "You are an intent classifier. " +
		"If the following message is asking for flight information, schedules, bookings, and destinations, respond ONLY with 'no'. " +
		"If the following message is asking for travel information, tips, or recommendations about a destination, respond ONLY with 'yes'. " +
		"Otherwise, respond ONLY with 'no'."

	flightPrompt = "You are an intent classifier. " +
		"If the following message is asking for flight information, booking, schedules, or airfare between locations, respond ONLY with 'yes'. " +
		"Otherwise, respond ONLY with 'no'."
)

var weatherKeywords = []string{
	"temperature", "rain", "sunny", "cloudy", "forecast", "wind", "humidity",
	"snow", "storm", "hot", "cold", "climate", "how is it outside", "is it raining",
	"is it sunny", "is it snowing", "is it hot", "is it cold", "weather",
}

// Classifier asks the LLM yes/no questions about a message.
type Classifier struct {
	model           llm.Completer
	weatherKeywords bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWeatherKeywords detects weather by keyword match instead of the LLM.
func WithWeatherKeywords(enabled bool) Option {
	return func(c *Classifier) {
		c.weatherKeywords = enabled
	}
}

func NewClassifier(model llm.Completer, opts ...Option) *Classifier {
	c := &Classifier{model: model}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsWeather reports whether text asks about the weather.
func (c *Classifier) IsWeather(ctx context.Context, text string) (bool, error) {
	if c.weatherKeywords {
		return IsWeatherByKeywords(text), nil
	}
	return c.ask(ctx, weatherPrompt, text)
}

// IsTravelTips reports whether text asks for travel tips about a destination.
func (c *Classifier) IsTravelTips(ctx context.Context, text string) (bool, error) {
	return c.ask(ctx, travelPrompt, text)
}

// IsFlight reports whether text asks for flight information.
func (c *Classifier) IsFlight(ctx context.Context, text string) (bool, error) {
	return c.ask(ctx, flightPrompt, text)
}

// Classify checks weather, then travel tips, then flights. The first match
// wins and later checks are not run.
func (c *Classifier) Classify(ctx context.Context, text string) (Intent, error) {
	checks := []struct {
		intent Intent
		check  func(context.Context, string) (bool, error)
	}{
		{Weather, c.IsWeather},
		{TravelTips, c.IsTravelTips},
		{Flight, c.IsFlight},
	}
	for _, ch := range checks {
		ok, err := ch.check(ctx, text)
		if err != nil {
			return None, fmt.Errorf("classify %s intent: %w", ch.intent, err)
		}
		if ok {
			log.Debug("Classified message as %s", ch.intent)
			return ch.intent, nil
		}
	}
	return None, nil
}

func (c *Classifier) ask(ctx context.Context, instruction, text string) (bool, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: instruction},
		{Role: llm.RoleUser, Content: text},
	}
	answer, err := c.model.Complete(ctx, messages, llm.NewChatCompletionOptions().WithTemperature(0))
	if err != nil {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "yes", nil
}

// IsWeatherByKeywords is a case-insensitive substring match against a fixed
// list of weather words.
func IsWeatherByKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range weatherKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
