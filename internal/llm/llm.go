package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/datachat/backend/pkg/config"
)

var (
	// ErrUnavailable marks the generation service as unreachable.
	ErrUnavailable = errors.New("generation service unavailable")
	// ErrTimeout marks a generation call that exceeded its deadline. Kept
	// distinct from ErrUnavailable so callers can report it separately.
	ErrTimeout = errors.New("generation request timed out")
)

// Generator is the generative language-model service the engine calls.
type Generator interface {
	// Generate produces a completion for prompt under systemPrompt.
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error)

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// ListModels returns the model names the service can serve.
	ListModels(ctx context.Context) ([]string, error)
}

// New builds the generator named by cfg.Provider.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaBaseURL, cfg.Model, cfg.TimeoutSec), nil
	case "openai":
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.TimeoutSec), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
