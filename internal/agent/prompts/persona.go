package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/model"
	logx "github.com/timberline-assist/server/pkg/logger"
)

//go:embed template/persona_prompt.txt
var personaTemplate string

// FallbackPersona is the hardcoded last resort when neither the configured
// prompt file nor the embedded template can be used.
const FallbackPersona = "You are a friendly customer service assistant for a small business. " +
	"Answer customer questions about the business's products, policies and services, " +
	"and politely decline unrelated requests."

// LoadPersona resolves the persona system prompt: configured file first,
// then the embedded template rendered with the business details, then the
// hardcoded fallback. It never fails.
func LoadPersona(ctx context.Context, cfg model.PromptConfig) string {
	if cfg.PersonaPath != "" {
		b, err := os.ReadFile(cfg.PersonaPath)
		if err == nil && strings.TrimSpace(string(b)) != "" {
			return strings.TrimSpace(string(b))
		}
		logx.Warn().Err(err).Str("path", cfg.PersonaPath).Msg("persona prompt file unavailable, falling back to embedded template")
	}

	rendered, err := RenderPersona(ctx, cfg)
	if err != nil {
		logx.Warn().Err(err).Msg("persona template render failed, using fallback persona")
		return FallbackPersona
	}
	return rendered
}

// RenderPersona renders the embedded persona template via the Eino prompt
// component (Go template) to both format and emit prompt callbacks.
func RenderPersona(ctx context.Context, cfg model.PromptConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(personaTemplate),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"BusinessName": cfg.BusinessName,
		"BusinessType": cfg.BusinessType,
	})
	if err != nil {
		return "", fmt.Errorf("persona prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("persona prompt render: empty result")
	}
	return msgs[0].Content, nil
}
