package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/schema"

	errx "github.com/timberline-assist/server/internal/core/error"
	logx "github.com/timberline-assist/server/pkg/logger"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errx.NewValidation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, errx.NewValidation("sessionId and message are required"))
		return
	}

	// Over-long messages are truncated silently, not rejected.
	msg := req.Message
	if s.cfg.MaxMessageLength > 0 {
		if runes := []rune(msg); len(runes) > s.cfg.MaxMessageLength {
			msg = string(runes[:s.cfg.MaxMessageLength])
		}
	}

	if !s.limiter.Allow(clientKey(r)) {
		writeError(w, errx.NewRateLimited())
		return
	}

	if s.agent == nil {
		writeError(w, errx.New(nil, http.StatusInternalServerError, "completion provider not configured"))
		return
	}

	// Serialise turns per session: both reads and appends happen under the
	// session lock, so two concurrent requests for the same sessionId cannot
	// interleave their histories.
	release := s.sessions.Acquire(req.SessionID)
	defer release()

	history, err := s.sessions.Begin(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	answer, err := s.agent.RunTurn(r.Context(), msg, history.Messages)
	if err != nil {
		writeError(w, err)
		return
	}

	userMsg := schema.UserMessage(msg)
	assistantMsg := schema.AssistantMessage(answer, nil)
	if err := s.sessions.Commit(r.Context(), req.SessionID, userMsg, assistantMsg); err != nil {
		// The answer was produced; losing the append costs history, not the turn.
		logx.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to save turn")
	}

	writeJSON(w, http.StatusOK, chatResponse{Content: answer, SessionID: req.SessionID})
}

// clientKey identifies the caller for rate limiting: the real client IP,
// falling back to the raw remote address.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps an error chain onto the HTTP response. Provider failures
// are the only class that folds the underlying cause into the message;
// everything unexpected becomes a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errx.AppError
	if !errors.As(err, &appErr) {
		logx.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errx.SystemErrorMessage})
		return
	}

	msg := appErr.Message
	if appErr.Message == errx.ProviderErrorMessage && appErr.Err != nil {
		msg = fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	if appErr.Status >= 500 {
		logx.Error().Err(appErr).Int("status", appErr.Status).Msg("request failed")
	} else {
		logx.Debug().Err(appErr).Int("status", appErr.Status).Msg("request rejected")
	}
	writeJSON(w, appErr.Status, map[string]string{"error": msg})
}
