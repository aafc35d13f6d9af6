package model

import "time"

// ================ Config ================

// CompletionConfig selects and tunes the hosted completion backend.
type CompletionConfig struct {
	Backend       string        `envconfig:"COMPLETION_BACKEND" default:"gemini"`
	Model         string        `envconfig:"COMPLETION_MODEL" default:"gemini-2.5-flash"`
	MaxTokens     int           `envconfig:"COMPLETION_MAX_TOKENS" default:"1024"`
	Temperature   float32       `envconfig:"COMPLETION_TEMPERATURE" default:"0.4"`
	Timeout       time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"30s"`
	GeminiAPIKey  string        `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string        `envconfig:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
}

// HasCredential reports whether the selected backend has an API key configured.
func (c CompletionConfig) HasCredential() bool {
	if c.Backend == "openai" {
		return c.OpenAIAPIKey != ""
	}
	return c.GeminiAPIKey != ""
}

// SessionConfig bounds conversation size and lifetime.
// MaxUserTurns is a terminal condition: a session that reaches it rejects
// further turns rather than silently truncating history.
type SessionConfig struct {
	Store         string        `envconfig:"SESSION_STORE" default:"memory"`
	Timeout       time.Duration `envconfig:"SESSION_TIMEOUT" default:"30m"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
	MaxUserTurns  int           `envconfig:"MAX_MESSAGES_PER_SESSION" default:"25"`
}

// PromptConfig shapes the persona system prompt.
type PromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"Timberline Surfaces"`
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"kitchen worktop and timber surfaces supplier"`
	PersonaPath  string `envconfig:"PERSONA_PROMPT_PATH"`
}

// RouterConfig tunes knowledge-domain detection and context formatting.
// ProductKeywords extends the fixed domain nouns with catalogue-specific ones.
type RouterConfig struct {
	CurrencySymbol  string `envconfig:"CURRENCY_SYMBOL" default:"£"`
	ProductKeywords string `envconfig:"PRODUCT_KEYWORDS" default:"worktop, oak, walnut, beech, iroko, countertop, upstand, shelf, timber, wood"`
}

// ServerConfig bounds the HTTP surface.
type ServerConfig struct {
	Port                 int    `envconfig:"PORT" default:"8080"`
	MaxMessagesPerMinute int    `envconfig:"MAX_MESSAGES_PER_MINUTE" default:"20"`
	MaxMessageLength     int    `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
	KnowledgeDir         string `envconfig:"KNOWLEDGE_DIR" default:"data"`
	WebDir               string `envconfig:"WEB_DIR" default:"web"`
}
