package resilience

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/MimeLyc/travel-concierge/pkg/log"
)

const (
	defaultMaxFailures uint32        = 5
	defaultTimeout     time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures a circuit breaker around an upstream service.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `json:"max_failures" yaml:"max_failures"`
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// Interval clears failure counts periodically while closed.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// ErrCircuitOpen is returned while a breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// Breaker guards calls to one upstream service.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// NewBreaker builds a breaker; zero fields of cfg take defaults.
func NewBreaker[T any](name string, cfg BreakerConfig) *Breaker[T] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	})
	return &Breaker[T]{name: name, cb: cb}
}

// Execute runs fn through the breaker.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%s: %w: %v", b.name, ErrCircuitOpen, err)
	}
	return res, err
}

// State reports the breaker state, e.g. "closed" or "open".
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
