package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
	"github.com/MimeLyc/travel-concierge/internal/service"
)

// Concierge is the part of service.Concierge the HTTP surface needs.
type Concierge interface {
	Turn(ctx context.Context, threadID, input string) (*service.Reply, error)
	History(ctx context.Context, threadID string) ([]llm.Message, error)
	Threads(ctx context.Context) ([]persistence.Thread, error)
}

type Server struct {
	concierge Concierge
	limit     RateLimitConfig
	newID     func() string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithRateLimit limits requests per client; a zero config disables limiting.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(s *Server) {
		s.limit = cfg
	}
}

// WithThreadIDs replaces the generator of ids for new threads.
func WithThreadIDs(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

func NewServer(concierge Concierge, opts ...Option) *Server {
	s := &Server{
		concierge: concierge,
		newID:     newThreadID,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler serves the routes without rate limiting.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves addr until Shutdown. The rate limiter's cleanup
// stops with ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var handler http.Handler = s.mux
	if s.limit.RequestsPerSecond > 0 {
		handler = RateLimit(ctx, s.limit)(handler)
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/threads", s.handleListThreads)
	s.mux.HandleFunc("GET /api/threads/{id}/messages", s.handleThreadMessages)
	s.mux.HandleFunc("GET /api/cities", s.handleCities)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}
