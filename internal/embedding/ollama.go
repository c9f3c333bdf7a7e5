package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/datachat/backend/pkg/circuitbreaker"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/retry"
)

// OllamaService generates embeddings via a local Ollama instance.
type OllamaService struct {
	baseURL     string
	model       string
	client      *http.Client
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOllamaService(baseURL, model string, timeoutSec int) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeoutSec <= 0 {
		timeoutSec = 15
	}

	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.DefaultConfig()
	retryConfig.Logger = logger.GetLogger()

	logger.Info("Ollama embedding service initialized",
		zap.String("base_url", baseURL),
		zap.String("model", model),
	)

	return &OllamaService{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		cb:          cb,
		retryConfig: retryConfig,
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32

	err := s.cb.Execute(ctx, func() error {
		return retry.Do(ctx, s.retryConfig, func() error {
			var err error
			embedding, err = s.embed(ctx, text)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (s *OllamaService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Ollama has no batch endpoint; embed sequentially.
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = vector
	}
	return embeddings, nil
}

func (s *OllamaService) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return embedResp.Embedding, nil
}
