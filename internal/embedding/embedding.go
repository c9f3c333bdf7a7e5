package embedding

import (
	"context"
	"fmt"

	"github.com/datachat/backend/pkg/config"
)

// Service generates fixed-dimensionality vector embeddings for text.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the embedding service named by cfg.Provider.
func New(cfg config.EmbeddingConfig) (Service, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaService(cfg.OllamaBaseURL, cfg.Model, cfg.TimeoutSec), nil
	case "openai":
		return NewOpenAIService(cfg.APIKey, cfg.Model, cfg.TimeoutSec), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
