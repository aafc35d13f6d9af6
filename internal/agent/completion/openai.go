package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"

	"github.com/timberline-assist/server/internal/agent/model"
)

// OpenAIModel is the alternate completion backend, selected with
// COMPLETION_BACKEND=openai.
type OpenAIModel struct {
	client      *openai.Client
	name        string
	maxTokens   int
	temperature float32
}

// NewOpenAIModel creates an OpenAI chat-completions backend.
func NewOpenAIModel(cfg model.CompletionConfig) *OpenAIModel {
	return &OpenAIModel{
		client:      openai.NewClient(cfg.OpenAIAPIKey),
		name:        cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (m *OpenAIModel) Generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	var apiMsgs []openai.ChatCompletionMessage
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		apiMsgs = append(apiMsgs, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.name,
		Messages:    apiMsgs,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion response contained no choices")
	}

	out := schema.AssistantMessage(resp.Choices[0].Message.Content, nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	logUsage(m.name, out)
	return out, nil
}

func (m *OpenAIModel) ModelName() string {
	return m.name
}

func toOpenAIRole(role schema.RoleType) string {
	switch role {
	case schema.System:
		return openai.ChatMessageRoleSystem
	case schema.Assistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

var _ model.ChatModel = (*OpenAIModel)(nil)
