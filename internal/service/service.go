package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/agent"
	"github.com/MimeLyc/travel-concierge/internal/intent"
	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
	"github.com/MimeLyc/travel-concierge/internal/tools"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

// FallbackGreeting is shown when the model cannot produce a greeting.
const FallbackGreeting = "Hello! I can help you with weather, travel, and flight information. What would you like to know?"

const greetingMaxTokens = 200

const defaultThreadID = "2"

// Concierge answers user turns and keeps conversation state per thread.
type Concierge struct {
	cfg        Config
	model      Model
	store      persistence.Store
	classifier *intent.Classifier
	locks      *threadLocks

	weather    *agent.Graph
	travel     *agent.Graph
	flight     *agent.Graph
	assistant  *agent.Graph
	supervisor *agent.Graph
}

// NewConcierge wires the agents of cfg.Mode from deps.
func NewConcierge(cfg Config, deps Dependencies) (*Concierge, error) {
	if deps.Model == nil {
		return nil, NewError(ErrConfiguration, "a completion model is required")
	}
	if deps.Store == nil {
		return nil, NewError(ErrConfiguration, "a conversation store is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRouter
	}
	if cfg.DefaultThreadID == "" {
		cfg.DefaultThreadID = defaultThreadID
	}

	c := &Concierge{
		cfg:   cfg,
		model: deps.Model,
		store: deps.Store,
		locks: newThreadLocks(),
	}

	var err error
	switch cfg.Mode {
	case ModeRouter:
		err = c.buildRouter(deps)
	case ModeTools:
		err = c.buildAssistant(deps)
	case ModeSupervisor:
		err = c.buildSupervisor(deps)
	default:
		err = fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, WrapError(err, ErrConfiguration, fmt.Sprintf("cannot build %s concierge", cfg.Mode))
	}
	log.Info("Concierge ready in %s mode", cfg.Mode)
	return c, nil
}

func (c *Concierge) graph(name, prompt string, bound ...tools.Tool) (*agent.Graph, error) {
	registry, err := tools.NewRegistryWith(bound...)
	if err != nil {
		return nil, err
	}
	return agent.NewGraph(agent.Config{
		Name:          name,
		SystemPrompt:  prompt,
		Model:         c.model,
		Tools:         registry,
		MaxToolRounds: c.cfg.MaxToolRounds,
		ToolTimeout:   c.cfg.ToolTimeout,
	}), nil
}

func (c *Concierge) buildRouter(deps Dependencies) error {
	if deps.Generator == nil {
		return fmt.Errorf("synthetic data generator is required")
	}
	if deps.Flights == nil || deps.Extractor == nil {
		return fmt.Errorf("flight lookup and extractor are required")
	}
	c.classifier = intent.NewClassifier(c.model, intent.WithWeatherKeywords(c.cfg.WeatherKeywords))

	var err error
	if c.weather, err = c.graph("weather", agent.WeatherAgentPrompt,
		tools.NewWeatherTool(deps.Generator),
		tools.NewEventsTool(deps.Generator),
		tools.NewSupportedCitiesTool(),
	); err != nil {
		return err
	}
	if c.travel, err = c.graph("travel", agent.TravelAgentPrompt, tools.NewTravelInfoTool(c.model)); err != nil {
		return err
	}
	c.flight, err = c.graph("flight", agent.FlightAgentPrompt, tools.NewFlightInfoTool(deps.Extractor, deps.Flights))
	return err
}

func (c *Concierge) buildAssistant(deps Dependencies) error {
	if deps.Generator == nil {
		return fmt.Errorf("synthetic data generator is required")
	}
	bound := []tools.Tool{
		tools.NewWeatherTool(deps.Generator),
		tools.NewEventsTool(deps.Generator),
		tools.NewSupportedCitiesTool(),
	}
	if deps.Flights != nil {
		bound = append(bound, tools.NewFlightSearchTool(deps.Flights))
	}
	var err error
	c.assistant, err = c.graph("assistant", agent.TravelAssistantPrompt, bound...)
	return err
}

func (c *Concierge) buildSupervisor(deps Dependencies) error {
	if deps.Search == nil {
		return fmt.Errorf("a web search tool is required")
	}
	var err error
	c.supervisor, err = agent.NewSupervisor(c.model, deps.Search, agent.SupervisorOptions{
		MaxToolRounds: c.cfg.MaxToolRounds,
		ToolTimeout:   c.cfg.ToolTimeout,
		AgentTimeout:  c.cfg.AgentTimeout,
	})
	return err
}

// Mode returns the configured mode.
func (c *Concierge) Mode() Mode {
	return c.cfg.Mode
}

// DefaultThreadID is used when a turn names no thread.
func (c *Concierge) DefaultThreadID() string {
	return c.cfg.DefaultThreadID
}

// Turn answers input on threadID. Turns of one thread run one at a time; the
// thread is extended only when the turn succeeds.
func (c *Concierge) Turn(ctx context.Context, threadID, input string) (*Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, NewError(ErrMissingInput, "Please type a question.")
	}
	if strings.TrimSpace(threadID) == "" {
		threadID = c.cfg.DefaultThreadID
	}

	unlock := c.locks.lock(threadID)
	defer unlock()

	ctx, span := tracing.StartSpan(ctx, "concierge.turn")
	span.SetAttributes(tracing.StringAttr("thread.id", threadID), tracing.StringAttr("concierge.mode", string(c.cfg.Mode)))

	var reply *Reply
	err := SafeExecute(func() error {
		var err error
		reply, err = c.turn(ctx, threadID, input)
		return err
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Concierge) turn(ctx context.Context, threadID, input string) (*Reply, error) {
	checkpoint, err := loadThreadCheckpoint(ctx, c.store, threadID)
	if err != nil {
		return nil, WrapError(err, ErrCheckpoint, "could not load the conversation").WithContext("thread", threadID)
	}

	reply := &Reply{ThreadID: threadID, Agent: LabelDefault}
	var g *agent.Graph

	switch c.cfg.Mode {
	case ModeTools:
		g = c.assistant
	case ModeSupervisor:
		g = c.supervisor
	default:
		kind, err := c.classifier.Classify(ctx, input)
		if err != nil {
			return nil, WrapError(err, ErrClassification, "could not understand what you are asking for")
		}
		reply.Intent = kind
		switch kind {
		case intent.Weather:
			g, reply.Agent = c.weather, LabelWeather
		case intent.TravelTips:
			g, reply.Agent = c.travel, LabelTravel
		case intent.Flight:
			g, reply.Agent = c.flight, LabelFlight
		default:
			reply.Answer = intent.FallbackReply
			turn := []llm.Message{
				{Role: llm.RoleUser, Content: input},
				{Role: llm.RoleAssistant, Content: intent.FallbackReply},
			}
			if err := checkpoint.Commit(ctx, turn); err != nil {
				return nil, WrapError(err, ErrCheckpoint, "could not save the conversation").WithContext("thread", threadID)
			}
			return reply, nil
		}
	}

	start := time.Now()
	result, err := g.Run(ctx, checkpoint.History(), input)
	if err != nil {
		return nil, WrapError(err, classifyRunError(err), fmt.Sprintf("the %s could not answer", strings.ToLower(reply.Agent))).
			WithContext("thread", threadID)
	}
	log.Info("[%s] answered in %d round(s), %d tool call(s), %v", reply.Agent, result.Rounds, len(result.ToolCalls), time.Since(start).Round(time.Millisecond))

	if err := checkpoint.Commit(ctx, result.Messages); err != nil {
		return nil, WrapError(err, ErrCheckpoint, "could not save the conversation").WithContext("thread", threadID)
	}
	reply.Answer = result.Content
	return reply, nil
}

// Greeting asks the model to introduce the assistant, falling back to a
// fixed text.
func (c *Concierge) Greeting(ctx context.Context) string {
	messages := []llm.Message{{Role: llm.RoleUser, Content: "Greet the user."}}
	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(agent.GreetingPrompt).
		WithMaxTokens(greetingMaxTokens)
	greeting, err := c.model.Complete(ctx, messages, opts)
	if err != nil || strings.TrimSpace(greeting) == "" {
		if err != nil {
			log.Warn("Greeting failed, using fallback: %v", err)
		}
		return FallbackGreeting
	}
	return strings.TrimSpace(greeting)
}

// History returns the stored messages of threadID.
func (c *Concierge) History(ctx context.Context, threadID string) ([]llm.Message, error) {
	msgs, err := c.store.LoadMessages(ctx, threadID)
	if err != nil {
		return nil, WrapError(err, ErrCheckpoint, "could not load the conversation").WithContext("thread", threadID)
	}
	return msgs, nil
}

// Threads lists every stored thread.
func (c *Concierge) Threads(ctx context.Context) ([]persistence.Thread, error) {
	threads, err := c.store.ListThreads(ctx)
	if err != nil {
		return nil, WrapError(err, ErrCheckpoint, "could not list conversations")
	}
	return threads, nil
}
