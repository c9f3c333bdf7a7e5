package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/vector/milvus"
	"github.com/datachat/backend/pkg/logger"
)

// Retriever is the similarity-search surface the engine consumes.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, filter map[string]string) ([]milvus.Candidate, error)
}

// Generator produces a completion for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error)
}

// QueryOptions control a single Query call.
type QueryOptions struct {
	// UseHistory folds recent exchanges into the prompt and records the
	// new exchange on success.
	UseHistory bool
	// ReturnContext includes the assembled context text in the answer.
	ReturnContext bool
	// Filter narrows retrieval by metadata (source, file_type).
	Filter map[string]string
}

// Answer is the result of one successful Query.
type Answer struct {
	Question   string             `json:"question"`
	Answer     string             `json:"answer"`
	NumSources int                `json:"num_sources"`
	Sources    []milvus.Candidate `json:"sources,omitempty"`
	Context    string             `json:"context,omitempty"`
}

// Engine orchestrates retrieve, filter, assemble, generate.
type Engine struct {
	retriever   Retriever
	generator   Generator
	history     *ConversationHistory
	topK        int
	maxDistance float64
	temperature float32
}

func New(retriever Retriever, generator Generator, topK int, maxDistance float64, temperature float32) *Engine {
	return &Engine{
		retriever:   retriever,
		generator:   generator,
		history:     NewConversationHistory(),
		topK:        topK,
		maxDistance: maxDistance,
		temperature: temperature,
	}
}

// History exposes the conversation record for inspection and clearing.
func (e *Engine) History() *ConversationHistory {
	return e.history
}

// Query answers a question over the indexed corpus. Retrieval or generation
// failures surface as errors; an Answer is only returned on success. The
// exchange is recorded in history only when opts.UseHistory is set and
// generation succeeded.
func (e *Engine) Query(ctx context.Context, question string, opts QueryOptions) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	candidates, err := e.retriever.Search(ctx, question, e.topK, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	filtered := FilterByDistance(candidates, e.maxDistance)
	contextText := FormatContext(filtered)

	var prompt string
	if opts.UseHistory && e.history.Len() > 0 {
		prompt = llm.ConversationPrompt(RenderRecent(e.history, DefaultHistoryWindow), contextText, question)
	} else {
		prompt = llm.QAPrompt(contextText, question)
	}

	answer, err := e.generator.Generate(ctx, prompt, llm.SystemPromptDocumentQA, e.temperature)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	answer = strings.TrimSpace(answer)

	if opts.UseHistory {
		e.history.Append(question, answer)
	}

	logger.Info("Query answered",
		zap.Int("candidates", len(candidates)),
		zap.Int("sources", len(filtered)),
		zap.Bool("with_history", opts.UseHistory),
	)

	result := &Answer{
		Question:   question,
		Answer:     answer,
		NumSources: len(filtered),
		Sources:    filtered,
	}
	if opts.ReturnContext {
		result.Context = contextText
	}
	return result, nil
}
