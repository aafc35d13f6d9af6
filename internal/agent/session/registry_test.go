package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/model"
	"github.com/timberline-assist/server/internal/agent/repo"
	errx "github.com/timberline-assist/server/internal/core/error"
)

func testConfig() model.SessionConfig {
	return model.SessionConfig{
		Store:         "memory",
		Timeout:       30 * time.Minute,
		SweepInterval: time.Minute,
		MaxUserTurns:  2,
	}
}

func TestBeginRejectsAtTurnCap(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(repo.NewMemorySessionRepository(), testConfig())

	for i := 0; i < 2; i++ {
		if _, err := r.Begin(ctx, "s1"); err != nil {
			t.Fatalf("turn %d: unexpected error: %v", i, err)
		}
		if err := r.Commit(ctx, "s1", schema.UserMessage("q"), schema.AssistantMessage("a", nil)); err != nil {
			t.Fatalf("turn %d: unexpected error: %v", i, err)
		}
	}

	_, err := r.Begin(ctx, "s1")
	if err == nil {
		t.Fatal("expected the third turn to be rejected")
	}
	var appErr *errx.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusBadRequest {
		t.Errorf("expected a 400-class error, got %v", err)
	}

	// other sessions are unaffected
	if _, err := r.Begin(ctx, "s2"); err != nil {
		t.Errorf("unexpected error for fresh session: %v", err)
	}
}

func TestSweepEvictsIdleSessionAndResetsIt(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	r := NewRegistry(repo.NewMemorySessionRepository(), cfg)

	r.Commit(ctx, "s1", schema.UserMessage("q"), schema.AssistantMessage("a", nil))
	r.Commit(ctx, "s1", schema.UserMessage("q2"), schema.AssistantMessage("a2", nil))

	// at the cap now
	if _, err := r.Begin(ctx, "s1"); err == nil {
		t.Fatal("expected session at cap before sweep")
	}

	time.Sleep(20 * time.Millisecond)
	r.Sweep(ctx)

	// after the sweep the same sessionId is a brand-new session
	h, err := r.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("expected swept session to be usable again: %v", err)
	}
	if len(h.Messages) != 0 {
		t.Errorf("expected empty history after sweep, got %d messages", len(h.Messages))
	}
}

func TestAcquireSerialisesSameSession(t *testing.T) {
	r := NewRegistry(repo.NewMemorySessionRepository(), testConfig())

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := r.Acquire("s1")
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most one concurrent turn per session, saw %d", maxActive)
	}
}

func TestAcquireAllowsDifferentSessionsInParallel(t *testing.T) {
	r := NewRegistry(repo.NewMemorySessionRepository(), testConfig())

	releaseA := r.Acquire("a")
	done := make(chan struct{})
	go func() {
		releaseB := r.Acquire("b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a held lock on one session must not block another session")
	}
	releaseA()
}
