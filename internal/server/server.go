package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/timberline-assist/server/internal/agent"
	"github.com/timberline-assist/server/internal/agent/model"
	"github.com/timberline-assist/server/internal/agent/session"
	"github.com/timberline-assist/server/internal/core"
	logx "github.com/timberline-assist/server/pkg/logger"
)

// Server is the HTTP shell around the chat core: routing, rate limiting and
// static pages. All non-trivial logic lives in the agent and session packages.
type Server struct {
	cfg      model.ServerConfig
	env      core.Environment
	agent    *agent.Agent
	sessions *session.Registry
	limiter  *rateLimiter

	router     chi.Router
	httpServer *http.Server
}

// New wires the server. ag may be nil when no completion credential is
// configured; the chat endpoint then reports 500 while health and static
// pages keep working.
func New(cfg model.ServerConfig, env core.Environment, ag *agent.Agent, sessions *session.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		env:      env,
		agent:    ag,
		sessions: sessions,
		limiter:  newRateLimiter(cfg.MaxMessagesPerMinute),
	}

	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.env.IsDevelopment() {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/api/health", handleHealth)
	r.Post("/api/chat", s.handleChat)

	// Landing page and chat widget.
	if s.cfg.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.WebDir)))
	}

	return r
}

// Router returns the handler, exposed for httptest use.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port and runs the rate-limit
// sweeper until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.limiter.RunSweeper(ctx, time.Minute)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logx.Info().Str("addr", addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
