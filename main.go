package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/timberline-assist/server/internal/agent"
	"github.com/timberline-assist/server/internal/agent/completion"
	"github.com/timberline-assist/server/internal/agent/guard"
	"github.com/timberline-assist/server/internal/agent/knowledge"
	"github.com/timberline-assist/server/internal/agent/model"
	"github.com/timberline-assist/server/internal/agent/prompts"
	"github.com/timberline-assist/server/internal/agent/repo"
	"github.com/timberline-assist/server/internal/agent/router"
	"github.com/timberline-assist/server/internal/agent/session"
	"github.com/timberline-assist/server/internal/core"
	"github.com/timberline-assist/server/internal/server"
	logx "github.com/timberline-assist/server/pkg/logger"
	pkgredis "github.com/timberline-assist/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// Core configs
	Completion model.CompletionConfig
	Session    model.SessionConfig
	Prompt     model.PromptConfig
	Router     model.RouterConfig
	Server     model.ServerConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env})

	store := knowledge.Load(cfg.Server.KnowledgeDir)

	var sessionRepo model.SessionRepository
	if cfg.Session.Store == "redis" {
		rdb, err := cfg.Redis.New()
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise redis client")
		}
		defer rdb.Close()
		sessionRepo = repo.NewRedisSessionRepository(rdb, cfg.Session.Timeout)
		logx.Info().Msg("using redis session store")
	} else {
		sessionRepo = repo.NewMemorySessionRepository()
	}

	registry := session.NewRegistry(sessionRepo, cfg.Session)
	go registry.RunSweeper(ctx)

	// Without a credential the server still starts; the chat endpoint
	// reports the missing provider per request.
	var ag *agent.Agent
	if cfg.Completion.HasCredential() {
		chat, err := completion.NewChatModel(ctx, cfg.Completion)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to build completion backend")
		}

		ag, err = agent.New(agent.Config{
			ChatModel: chat,
			Router:    router.New(store, cfg.Router),
			Guard:     guard.New(),
			Persona:   prompts.LoadPersona(ctx, cfg.Prompt),
			Timeout:   cfg.Completion.Timeout,
		})
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to build agent")
		}
	} else {
		logx.Warn().Str("backend", cfg.Completion.Backend).Msg("no completion credential configured, chat endpoint disabled")
	}

	srv := server.New(cfg.Server, env, ag, registry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logx.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}
}
