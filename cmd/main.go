package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/travel-concierge/internal/airports"
	"github.com/MimeLyc/travel-concierge/internal/config"
	"github.com/MimeLyc/travel-concierge/internal/console"
	"github.com/MimeLyc/travel-concierge/internal/flights"
	"github.com/MimeLyc/travel-concierge/internal/geo"
	"github.com/MimeLyc/travel-concierge/internal/httpapi"
	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
	"github.com/MimeLyc/travel-concierge/internal/service"
	"github.com/MimeLyc/travel-concierge/internal/synth"
	"github.com/MimeLyc/travel-concierge/internal/tools"
	"github.com/MimeLyc/travel-concierge/internal/tracing"
	"github.com/MimeLyc/travel-concierge/pkg/log"
)

type consoleRunner interface {
	Run(ctx context.Context) error
}

type httpServer interface {
	ListenAndServe(ctx context.Context, addr string) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Initialize configuration
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, os.Stderr)
	if err != nil {
		log.Fatal("Failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		log.Fatal("Failed to open conversation store: %v", err)
	}
	defer store.Close()

	concierge, err := buildConcierge(cfg, store)
	if err != nil {
		log.Fatal("%s", service.UserMessage(err))
	}

	var repl consoleRunner
	if cfg.Console.Enabled {
		opts := []console.Option{console.WithThread(cfg.Concierge.ThreadID)}
		if cfg.Console.Markdown {
			opts = append(opts, console.WithMarkdown(100))
		}
		repl = console.New(concierge, os.Stdin, os.Stdout, opts...)
	}
	var srv httpServer
	if cfg.HTTP.Addr != "" {
		srv = httpapi.NewServer(concierge, httpapi.WithRateLimit(httpapi.RateLimitConfig{
			RequestsPerSecond: cfg.HTTP.RateLimit,
			Burst:             cfg.HTTP.RateBurst,
		}))
	}

	if err := runWithComponents(ctx, cfg, repl, srv); err != nil {
		log.Fatal("Concierge stopped: %v", err)
	}
}

func setupLogging(cfg *config.Config) (func(), error) {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File != "" {
		fileLogger, err := log.NewFileLogger(cfg.Log.File, level)
		if err != nil {
			return nil, err
		}
		log.SetLogger(fileLogger.Logger)
		return func() { _ = fileLogger.Close() }, nil
	}
	logger := log.NewLogger(level)
	if cfg.Console.Enabled {
		// keep stdout for the conversation
		logger.SetOutput(os.Stderr)
	}
	log.SetLogger(logger)
	return func() {}, nil
}

// buildConcierge wires upstream clients into a concierge for cfg's mode.
func buildConcierge(cfg *config.Config, store persistence.Store) (*service.Concierge, error) {
	mode, err := service.ParseMode(cfg.Concierge.Mode)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfiguration, "invalid concierge mode")
	}

	model, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfiguration, "cannot create the LLM client")
	}

	registry, err := loadAirports(cfg.Store.AirportsFile)
	if err != nil {
		return nil, service.WrapError(err, service.ErrConfiguration, "cannot load the airport registry")
	}
	log.Info("Loaded %d airports", registry.Len())

	locator := geo.NewClient(cfg.Geo.APIURL, cfg.Geo.Token, cfg.Geo.Timeout)
	provider := flights.NewSerpAPIClient(cfg.Flights.APIKey, cfg.Flights.APIURL, cfg.Flights.Timeout, cfg.Flights.Breaker)
	if cfg.Flights.APIKey == "" {
		log.Warn("FLIGHTS_API_KEY is not set; flight searches will fail")
	}

	deps := service.Dependencies{
		Model:     model,
		Store:     store,
		Generator: synth.NewGenerator(),
		Flights:   flights.NewService(registry, locator, provider),
		Extractor: flights.NewExtractor(model),
	}
	if cfg.Search.APIKey != "" {
		deps.Search = tools.NewWebSearchTool(tools.NewTavilyBackend(cfg.Search.APIKey, cfg.Search.APIURL, cfg.Search.Timeout))
	}

	return service.NewConcierge(service.Config{
		Mode:            mode,
		DefaultThreadID: cfg.Concierge.ThreadID,
		MaxToolRounds:   cfg.Agent.MaxToolRounds,
		ToolTimeout:     cfg.Agent.ToolTimeout,
		AgentTimeout:    cfg.Agent.SubagentTimeout,
		WeatherKeywords: cfg.Intent.WeatherKeywords,
	}, deps)
}

func loadAirports(path string) (*airports.Registry, error) {
	if path == "" {
		return airports.LoadDefault()
	}
	return airports.LoadFile(path)
}

// runWithComponents serves the console and the HTTP surface until ctx is
// done or the console session ends.
func runWithComponents(ctx context.Context, cfg *config.Config, repl consoleRunner, srv httpServer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if repl != nil {
		g.Go(func() error {
			defer cancel()
			return repl.Run(gctx)
		})
	}

	if srv != nil && cfg.HTTP.Addr != "" {
		g.Go(func() error {
			log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(gctx, cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
