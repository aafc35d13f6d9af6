package repo

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/model"
)

type memorySession struct {
	messages   []*schema.Message
	lastActive time.Time
}

// MemorySessionRepository is the canonical in-process session store: a map
// keyed by sessionId with a last-active timestamp per entry. Idle entries
// are removed by DeleteIdle, driven by the registry's periodic sweep.
// Nothing survives a process restart.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*memorySession),
	}
}

func (r *MemorySessionRepository) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = &memorySession{}
		r.sessions[sessionID] = s
	}
	s.messages = append(s.messages, message)
	s.lastActive = time.Now()
	return nil
}

func (r *MemorySessionRepository) LoadHistory(ctx context.Context, sessionID string) (*model.SessionHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return &model.SessionHistory{SessionID: sessionID, Messages: []*schema.Message{}}, nil
	}

	msgs := make([]*schema.Message, len(s.messages))
	copy(msgs, s.messages)
	return &model.SessionHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (r *MemorySessionRepository) MessageCount(ctx context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	return len(s.messages), nil
}

func (r *MemorySessionRepository) ClearHistory(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

func (r *MemorySessionRepository) DeleteIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, s := range r.sessions {
		if s.lastActive.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
