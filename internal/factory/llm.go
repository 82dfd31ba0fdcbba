package factory

import (
	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/config"
	"github.com/arbor-coach/arbor/server/internal/llm"
)

// NewLLMProvider creates the model endpoint client from config.
func NewLLMProvider(cfg *config.Config, log zerolog.Logger) llm.Provider {
	return llm.NewAnthropicClient(llm.AnthropicOptions{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		MaxTokens: cfg.LLMMaxTokens,
	}, log)
}
