package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/guard"
	"github.com/timberline-assist/server/internal/agent/model"
	"github.com/timberline-assist/server/internal/agent/router"
	errx "github.com/timberline-assist/server/internal/core/error"
	logx "github.com/timberline-assist/server/pkg/logger"
)

// Agent composes persona, history, guard annotation and retrieved knowledge
// into the outbound message sequence and invokes the completion service
// exactly once per turn. It has no side effects beyond that one remote call;
// appending the turn to the session is the caller's responsibility.
type Agent struct {
	chat    model.ChatModel
	router  *router.Router
	guard   *guard.Guard
	persona string
	timeout time.Duration
}

// Config holds everything needed to compose an Agent.
type Config struct {
	ChatModel model.ChatModel
	Router    *router.Router
	Guard     *guard.Guard
	Persona   string
	Timeout   time.Duration
}

func New(cfg Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if cfg.Guard == nil {
		return nil, fmt.Errorf("guard is nil")
	}
	if cfg.Persona == "" {
		return nil, fmt.Errorf("persona prompt is empty")
	}

	return &Agent{
		chat:    cfg.ChatModel,
		router:  cfg.Router,
		guard:   cfg.Guard,
		persona: cfg.Persona,
		timeout: cfg.Timeout,
	}, nil
}

// RunTurn answers one user utterance given the prior history. The returned
// text is the model's answer verbatim, with no post-processing. Failures are
// provider-class errors carrying the underlying cause.
func (a *Agent) RunTurn(ctx context.Context, utterance string, history []*schema.Message) (string, error) {
	annotation, flagged := a.guard.Evaluate(utterance)
	knowledgeCtx := a.router.Route(utterance)

	var content strings.Builder
	if flagged {
		content.WriteString(annotation)
		content.WriteString("\n\n")
	}
	content.WriteString("CUSTOMER QUESTION: ")
	content.WriteString(utterance)
	if knowledgeCtx != "" {
		// The answer-based-on-this instruction is conditional on non-empty
		// context; the no-information sentinel omits the whole section.
		content.WriteString("\n\nRELEVANT KNOWLEDGE:\n")
		content.WriteString(knowledgeCtx)
		content.WriteString("\n\nPlease answer based on this information.")
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(a.persona))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(content.String()))

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	logx.Debug().
		Int("messages", len(messages)).
		Bool("flagged", flagged).
		Bool("knowledge", knowledgeCtx != "").
		Str("model", a.chat.ModelName()).
		Msg("invoking completion service")

	out, err := a.chat.Generate(callCtx, messages)
	if err != nil {
		logx.Error().Err(err).Msg("completion call failed")
		return "", errx.WrapProvider(err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", errx.WrapProvider(fmt.Errorf("empty completion response"))
	}

	return out.Content, nil
}
