// Package clients builds the generation models used by the pipeline.
package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-writer/pkg/config"
	"github.com/mikeboe/research-writer/pkg/research"
)

// NewModel creates a langchaingo model for the configured provider.
func NewModel(ctx context.Context, cfg *config.Config, model string) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderGoogle:
		return GoogleAi(ctx, cfg.GoogleAPIKey, model)
	case config.ProviderOpenAI:
		return OpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model)
	case config.ProviderAnthropic:
		return AnthropicAI(cfg.AnthropicAPIKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// NewModels creates the fast, reasoning and writer models. The writer uses
// the genai streaming backend when configured.
func NewModels(ctx context.Context, cfg *config.Config) (research.Models, error) {
	fast, err := NewModel(ctx, cfg, cfg.FastModel)
	if err != nil {
		return research.Models{}, fmt.Errorf("fast model: %w", err)
	}
	reasoning, err := NewModel(ctx, cfg, cfg.ReasoningModel)
	if err != nil {
		return research.Models{}, fmt.Errorf("reasoning model: %w", err)
	}

	var writer llms.Model
	if cfg.WriterBackend == config.WriterGenAI {
		writer, err = NewGenAIModel(ctx, cfg.GoogleAPIKey, cfg.WriterModel)
	} else {
		writer, err = NewModel(ctx, cfg, cfg.WriterModel)
	}
	if err != nil {
		return research.Models{}, fmt.Errorf("writer model: %w", err)
	}
	return research.Models{Fast: fast, Reasoning: reasoning, Writer: writer}, nil
}
