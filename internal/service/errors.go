package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/travel-concierge/internal/agent"
	"github.com/MimeLyc/travel-concierge/internal/flights"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

type ErrorType int

const (
	ErrMissingInput ErrorType = iota
	ErrUpstream
	ErrConfiguration
	ErrClassification
	ErrCheckpoint
	ErrValidation
	ErrUnknown
)

type ConciergeError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ConciergeError {
	return &ConciergeError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *ConciergeError {
	return &ConciergeError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *ConciergeError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ConciergeError) Unwrap() error {
	return e.Cause
}

func (e *ConciergeError) WithContext(key string, value any) *ConciergeError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrMissingInput:
		return "MissingInput"
	case ErrUpstream:
		return "Upstream"
	case ErrConfiguration:
		return "Configuration"
	case ErrClassification:
		return "Classification"
	case ErrCheckpoint:
		return "Checkpoint"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Advice returns what the user can do about an error of this kind
func (t ErrorType) Advice() string {
	switch t {
	case ErrMissingInput:
		return "Please type a question, or 'quit' to exit"
	case ErrUpstream:
		return "A remote service did not answer; please submit your query again in a moment"
	case ErrConfiguration:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrClassification:
		return "Your message could not be routed; please rephrase it"
	case ErrCheckpoint:
		return "The conversation could not be saved; please check the data directory permissions"
	case ErrValidation:
		return "The assistant produced an invalid request; please rephrase your question"
	default:
		return "Please review detailed error information and check relevant configuration"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var cErr *ConciergeError
	if errors.As(err, &cErr) {
		return cErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *ConciergeError {
	return NewErrorWithCause(errorType, message, err)
}

// classifyRunError maps an agent failure to its error kind
func classifyRunError(err error) ErrorType {
	switch {
	case errors.Is(err, agent.ErrUnknownTool),
		errors.Is(err, agent.ErrMaxToolRounds),
		errors.Is(err, agent.ErrUnmatchedToolResult),
		errors.Is(err, flights.ErrUnparsableExtraction):
		return ErrValidation
	case errors.Is(err, context.Canceled):
		return ErrUnknown
	default:
		// model, search and provider failures, including open breakers
		return ErrUpstream
	}
}

// UserMessage renders err as text for the person at the console
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var cErr *ConciergeError
	if !errors.As(err, &cErr) {
		log.Error("Unknown Error: %v", err)
		return fmt.Sprintf("Sorry, something went wrong: %v. %s.", err, ErrUnknown.Advice())
	}
	log.Error("Error Detail: %v\n advice: %s", err, cErr.Type.Advice())
	if cErr.Type == ErrMissingInput {
		return cErr.Message
	}
	return fmt.Sprintf("Sorry, %s. %s.", cErr.Message, cErr.Type.Advice())
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
