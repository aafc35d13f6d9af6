package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/timberline-assist/server/internal/agent/model"
	logx "github.com/timberline-assist/server/pkg/logger"
)

// GeminiModel is the default completion backend, built once at startup.
type GeminiModel struct {
	cm   *gemini.ChatModel
	name string
}

// NewGeminiModel creates a Gemini chat model with the configured sampling parameters.
func NewGeminiModel(ctx context.Context, cfg model.CompletionConfig) (*GeminiModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
	}

	return &GeminiModel{cm: cm, name: cfg.Model}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	out, err := g.cm.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	logUsage(g.name, out)
	return out, nil
}

func (g *GeminiModel) ModelName() string {
	return g.name
}

var _ model.ChatModel = (*GeminiModel)(nil)
