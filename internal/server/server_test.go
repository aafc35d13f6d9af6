package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent"
	"github.com/timberline-assist/server/internal/agent/guard"
	"github.com/timberline-assist/server/internal/agent/knowledge"
	"github.com/timberline-assist/server/internal/agent/model"
	"github.com/timberline-assist/server/internal/agent/repo"
	"github.com/timberline-assist/server/internal/agent/router"
	"github.com/timberline-assist/server/internal/agent/session"
	"github.com/timberline-assist/server/internal/core"
)

type fakeChatModel struct {
	mu       sync.Mutex
	calls    [][]*schema.Message
	response string
	err      error
}

func (f *fakeChatModel) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.response, nil), nil
}

func (f *fakeChatModel) ModelName() string { return "fake-model" }

func (f *fakeChatModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testServer(t *testing.T, fake *fakeChatModel, cfg model.ServerConfig, sessionCfg model.SessionConfig) *Server {
	t.Helper()

	store := knowledge.New(
		[]model.Product{
			{ID: "p1", Name: "Premium Oak Worktop", Category: "worktops", Price: 149.99, Description: "Full-stave solid oak worktop", InStock: true},
		},
		nil, nil, nil,
	)

	var ag *agent.Agent
	if fake != nil {
		var err error
		ag, err = agent.New(agent.Config{
			ChatModel: fake,
			Router:    router.New(store, model.RouterConfig{CurrencySymbol: "£", ProductKeywords: "worktop, oak"}),
			Guard:     guard.New(),
			Persona:   "You are the assistant for Timberline Surfaces.",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	registry := session.NewRegistry(repo.NewMemorySessionRepository(), sessionCfg)
	return New(cfg, core.Development, ag, registry)
}

func defaultServerConfig() model.ServerConfig {
	return model.ServerConfig{
		Port:                 8080,
		MaxMessagesPerMinute: 100,
		MaxMessageLength:     2000,
	}
}

func defaultSessionConfig() model.SessionConfig {
	return model.SessionConfig{
		Store:         "memory",
		Timeout:       30 * time.Minute,
		SweepInterval: time.Minute,
		MaxUserTurns:  25,
	}
}

func postChat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, &fakeChatModel{response: "ok"}, defaultServerConfig(), defaultSessionConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	s := testServer(t, &fakeChatModel{response: "ok"}, defaultServerConfig(), defaultSessionConfig())

	if rec := postChat(t, s, "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestChatRejectsMissingFields(t *testing.T) {
	s := testServer(t, &fakeChatModel{response: "ok"}, defaultServerConfig(), defaultSessionConfig())

	cases := []string{
		`{"sessionId":"","message":"hello"}`,
		`{"sessionId":"s1","message":""}`,
		`{"sessionId":"s1","message":"   "}`,
		`{}`,
	}
	for _, body := range cases {
		if rec := postChat(t, s, body); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}

func TestChatSuccess(t *testing.T) {
	fake := &fakeChatModel{response: "Yes, the oak worktop is in stock."}
	s := testServer(t, fake, defaultServerConfig(), defaultSessionConfig())

	rec := postChat(t, s, `{"sessionId":"s1","message":"do you have oak worktops in stock"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Content != fake.response {
		t.Errorf("expected the model answer verbatim, got %q", body.Content)
	}
	if body.SessionID != "s1" {
		t.Errorf("expected the sessionId echoed back, got %q", body.SessionID)
	}
	if fake.callCount() != 1 {
		t.Errorf("expected exactly one completion call, got %d", fake.callCount())
	}
}

func TestChatCarriesHistoryAcrossTurns(t *testing.T) {
	fake := &fakeChatModel{response: "answer"}
	s := testServer(t, fake, defaultServerConfig(), defaultSessionConfig())

	postChat(t, s, `{"sessionId":"s1","message":"do you have oak worktops"}`)
	postChat(t, s, `{"sessionId":"s1","message":"how much is it"}`)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 completion calls, got %d", len(fake.calls))
	}
	// second call carries system + first user + first assistant + second user
	if got := len(fake.calls[1]); got != 4 {
		t.Fatalf("expected 4 messages on the second turn, got %d", got)
	}
	if fake.calls[1][2].Role != schema.Assistant || fake.calls[1][2].Content != "answer" {
		t.Errorf("expected the first answer replayed as history")
	}
}

func TestChatRateLimited(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxMessagesPerMinute = 1
	fake := &fakeChatModel{response: "ok"}
	s := testServer(t, fake, cfg, defaultSessionConfig())

	if rec := postChat(t, s, `{"sessionId":"s1","message":"hello"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := postChat(t, s, `{"sessionId":"s1","message":"hello again"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate limit") {
		t.Errorf("expected a rate limit message, got %s", rec.Body.String())
	}
	if fake.callCount() != 1 {
		t.Errorf("a limited request must not reach the provider, got %d calls", fake.callCount())
	}
}

func TestChatSessionTurnCap(t *testing.T) {
	sessionCfg := defaultSessionConfig()
	sessionCfg.MaxUserTurns = 1
	fake := &fakeChatModel{response: "ok"}
	s := testServer(t, fake, defaultServerConfig(), sessionCfg)

	if rec := postChat(t, s, `{"sessionId":"s1","message":"first"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected first turn to pass, got %d", rec.Code)
	}
	rec := postChat(t, s, `{"sessionId":"s1","message":"second"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 at the turn cap, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session message limit") {
		t.Errorf("expected the session limit message, got %s", rec.Body.String())
	}
	if fake.callCount() != 1 {
		t.Errorf("a capped turn must not reach the provider, got %d calls", fake.callCount())
	}

	// other sessions keep working
	if rec := postChat(t, s, `{"sessionId":"s2","message":"fresh"}`); rec.Code != http.StatusOK {
		t.Errorf("expected a fresh session to pass, got %d", rec.Code)
	}
}

func TestChatWithoutProvider(t *testing.T) {
	s := testServer(t, nil, defaultServerConfig(), defaultSessionConfig())

	rec := postChat(t, s, `{"sessionId":"s1","message":"hello"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without a configured provider, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Errorf("expected a configuration message, got %s", rec.Body.String())
	}
}

func TestChatProviderFailure(t *testing.T) {
	fake := &fakeChatModel{err: fmt.Errorf("quota exhausted")}
	s := testServer(t, fake, defaultServerConfig(), defaultSessionConfig())

	rec := postChat(t, s, `{"sessionId":"s1","message":"hello"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quota exhausted") {
		t.Errorf("expected the provider cause folded into the message, got %s", rec.Body.String())
	}
}

func TestChatFailedTurnNotRecorded(t *testing.T) {
	fake := &fakeChatModel{err: fmt.Errorf("boom")}
	s := testServer(t, fake, defaultServerConfig(), defaultSessionConfig())

	postChat(t, s, `{"sessionId":"s1","message":"hello"}`)

	fake.err = nil
	fake.response = "recovered"
	rec := postChat(t, s, `{"sessionId":"s1","message":"hello again"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	// the failed turn left no history: second call is system + user only
	if got := len(fake.calls[1]); got != 2 {
		t.Errorf("expected a clean history after a failed turn, got %d messages", got)
	}
}

func TestChatTruncatesLongMessages(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.MaxMessageLength = 5
	fake := &fakeChatModel{response: "ok"}
	s := testServer(t, fake, cfg, defaultSessionConfig())

	rec := postChat(t, s, `{"sessionId":"s1","message":"hello world this is long"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected truncation rather than rejection, got %d", rec.Code)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	sent := fake.calls[0][len(fake.calls[0])-1].Content
	if !strings.Contains(sent, "CUSTOMER QUESTION: hello") {
		t.Errorf("expected the truncated message, got:\n%s", sent)
	}
	if strings.Contains(sent, "world") {
		t.Errorf("expected content past the cap dropped, got:\n%s", sent)
	}
}
