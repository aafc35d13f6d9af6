package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/timberline-assist/server/internal/agent/model"
	logx "github.com/timberline-assist/server/pkg/logger"
)

// NewChatModel builds the configured completion backend.
func NewChatModel(ctx context.Context, cfg model.CompletionConfig) (model.ChatModel, error) {
	switch cfg.Backend {
	case "openai":
		return NewOpenAIModel(cfg), nil
	case "gemini", "":
		return NewGeminiModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown completion backend %q", cfg.Backend)
	}
}

// logUsage records token usage and USD cost for one completion call when the
// provider reported usage metadata.
func logUsage(modelName string, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}

	usage := out.ResponseMeta.Usage
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))

	logx.Debug().
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
