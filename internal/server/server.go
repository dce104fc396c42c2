package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"coopsched/internal/config"
	"coopsched/internal/sched"
)

// Server is the coopsched HTTP control API.
type Server struct {
	router    chi.Router
	logger    *zap.Logger
	config    config.ServerConfig
	startTime time.Time
	sched     *sched.Scheduler
	tasks     *registry
	client    *http.Client // used by fetch tasks
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithHTTPClient sets the client fetch tasks load scripts with.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.client = c
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, sc *sched.Scheduler, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With(zap.String("component", "server")),
		config:    cfg,
		startTime: time.Now(),
		sched:     sc,
		tasks:     newRegistry(cfg.MaxTracked),
		client:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Patch("/", s.handlePatchConfig)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
		})
	})
}
