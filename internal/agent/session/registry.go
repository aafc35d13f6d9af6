package session

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/model"
	errx "github.com/timberline-assist/server/internal/core/error"
	logx "github.com/timberline-assist/server/pkg/logger"
)

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Registry mediates all session access for the request path: it serialises
// concurrent turns for the same sessionId with per-key locks, enforces the
// user-turn cap, and owns the periodic sweep that evicts idle sessions.
type Registry struct {
	repo model.SessionRepository
	cfg  model.SessionConfig

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewRegistry(repo model.SessionRepository, cfg model.SessionConfig) *Registry {
	return &Registry{
		repo:  repo,
		cfg:   cfg,
		locks: make(map[string]*sessionLock),
	}
}

// Acquire takes the per-session lock, creating it on first use. The returned
// release function must be called once the turn is finished; locks with no
// waiters are evicted so the map does not grow with dead sessions.
func (r *Registry) Acquire(sessionID string) func() {
	r.mu.Lock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		r.locks[sessionID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, sessionID)
		}
		r.mu.Unlock()
	}
}

// Begin loads the session history for a new turn. A session that has already
// used its allowed user turns is a terminal condition: the turn is rejected
// before any provider call, and the history is left untouched.
func (r *Registry) Begin(ctx context.Context, sessionID string) (*model.SessionHistory, error) {
	count, err := r.repo.MessageCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Two stored messages per completed turn.
	if r.cfg.MaxUserTurns > 0 && count/2 >= r.cfg.MaxUserTurns {
		logx.Warn().Str("session_id", sessionID).Int("messages", count).Msg("session turn limit reached")
		return nil, errx.NewSessionLimit()
	}

	return r.repo.LoadHistory(ctx, sessionID)
}

// Commit appends the completed turn: exactly one user message and one
// assistant message. History mutation happens only here, never in the
// orchestrator.
func (r *Registry) Commit(ctx context.Context, sessionID string, userMsg, assistantMsg *schema.Message) error {
	if err := r.repo.AddMessage(ctx, sessionID, userMsg); err != nil {
		return err
	}
	return r.repo.AddMessage(ctx, sessionID, assistantMsg)
}

// RunSweeper evicts idle sessions on a fixed interval until ctx is
// cancelled. Sweep failures are logged and never propagate.
func (r *Registry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep removes sessions idle for longer than the configured timeout.
func (r *Registry) Sweep(ctx context.Context) {
	removed, err := r.repo.DeleteIdle(ctx, r.cfg.Timeout)
	if err != nil {
		logx.Error().Err(err).Msg("session sweep failed")
		return
	}
	if removed > 0 {
		logx.Debug().Int("removed", removed).Msg("idle sessions swept")
	}
}
