package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/datachat/backend/internal/llm"
	"github.com/datachat/backend/internal/vector/milvus"
)

type fakeRetriever struct {
	candidates []milvus.Candidate
	err        error
	lastQuery  string
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ int, _ map[string]string) ([]milvus.Candidate, error) {
	f.lastQuery = query
	return f.candidates, f.err
}

type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	lastSystem string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, systemPrompt string, _ float32) (string, error) {
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	return f.answer, f.err
}

func newTestEngine(r Retriever, g Generator) *Engine {
	return New(r, g, 5, 2.0, 0.7)
}

func TestQueryAnswersFromRetrievedContext(t *testing.T) {
	retriever := &fakeRetriever{candidates: []milvus.Candidate{
		{ID: "doc_a", Text: "Paris is the capital of France.", Distance: 0.4, Source: "france.txt"},
		{ID: "doc_b", Text: "Berlin is the capital of Germany.", Distance: 1.1, Source: "germany.txt"},
	}}
	generator := &fakeGenerator{answer: "  Paris.  "}
	eng := newTestEngine(retriever, generator)

	ans, err := eng.Query(context.Background(), "What is the capital of France?", QueryOptions{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if ans.Answer != "Paris." {
		t.Errorf("expected trimmed answer %q, got %q", "Paris.", ans.Answer)
	}
	if ans.NumSources != 2 {
		t.Errorf("expected 2 sources, got %d", ans.NumSources)
	}
	if generator.lastSystem != llm.SystemPromptDocumentQA {
		t.Errorf("expected document QA system prompt, got %q", generator.lastSystem)
	}
	if !strings.Contains(generator.lastPrompt, "[Document 1 - Source: france.txt]") {
		t.Errorf("prompt missing first document block:\n%s", generator.lastPrompt)
	}
	if !strings.Contains(generator.lastPrompt, "Paris is the capital of France.") {
		t.Errorf("prompt missing chunk text:\n%s", generator.lastPrompt)
	}
}

func TestQueryDistanceCutoffExcludesFarCandidates(t *testing.T) {
	retriever := &fakeRetriever{candidates: []milvus.Candidate{
		{ID: "doc_a", Text: "relevant", Distance: 1.9, Source: "a.txt"},
		{ID: "doc_b", Text: "borderline", Distance: 2.0, Source: "b.txt"},
		{ID: "doc_c", Text: "irrelevant", Distance: 2.01, Source: "c.txt"},
	}}
	generator := &fakeGenerator{answer: "ok"}
	eng := newTestEngine(retriever, generator)

	ans, err := eng.Query(context.Background(), "q", QueryOptions{})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if ans.NumSources != 2 {
		t.Errorf("expected cutoff to keep 2 of 3 candidates, got %d", ans.NumSources)
	}
	if strings.Contains(generator.lastPrompt, "irrelevant") {
		t.Errorf("excluded candidate leaked into prompt:\n%s", generator.lastPrompt)
	}
}

func TestQueryNoContextUsesSentinel(t *testing.T) {
	retriever := &fakeRetriever{candidates: []milvus.Candidate{
		{ID: "doc_a", Text: "far away", Distance: 9.5, Source: "a.txt"},
	}}
	generator := &fakeGenerator{answer: "I don't have that information."}
	eng := newTestEngine(retriever, generator)

	ans, err := eng.Query(context.Background(), "q", QueryOptions{ReturnContext: true})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}

	if ans.NumSources != 0 {
		t.Errorf("expected 0 sources, got %d", ans.NumSources)
	}
	if ans.Context != NoContextFound {
		t.Errorf("expected sentinel context, got %q", ans.Context)
	}
	// The system prompt stays fixed even when nothing survives the cutoff.
	if generator.lastSystem != llm.SystemPromptDocumentQA {
		t.Errorf("expected document QA system prompt, got %q", generator.lastSystem)
	}
	if !strings.Contains(generator.lastPrompt, NoContextFound) {
		t.Errorf("prompt missing sentinel:\n%s", generator.lastPrompt)
	}
}

func TestQueryGenerationFailureReturnsTypedError(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{err: fmt.Errorf("ollama: %w", llm.ErrUnavailable)}
	eng := newTestEngine(retriever, generator)

	ans, err := eng.Query(context.Background(), "q", QueryOptions{UseHistory: true})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if ans != nil {
		t.Errorf("expected nil answer on failure, got %+v", ans)
	}
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable in chain, got %v", err)
	}
	if eng.History().Len() != 0 {
		t.Errorf("failed exchange must not be recorded, history has %d turns", eng.History().Len())
	}
}

func TestQueryRetrievalFailurePropagates(t *testing.T) {
	wantErr := errors.New("milvus down")
	eng := newTestEngine(&fakeRetriever{err: wantErr}, &fakeGenerator{answer: "never"})

	_, err := eng.Query(context.Background(), "q", QueryOptions{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected retrieval error in chain, got %v", err)
	}
}

func TestQueryEmptyQuestionRejected(t *testing.T) {
	eng := newTestEngine(&fakeRetriever{}, &fakeGenerator{answer: "x"})
	if _, err := eng.Query(context.Background(), "   ", QueryOptions{}); err == nil {
		t.Fatal("expected error for blank question")
	}
}

func TestQueryHistoryFoldsLastThreeTurns(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{answer: "answer"}
	eng := newTestEngine(retriever, generator)

	for i := 1; i <= 4; i++ {
		q := fmt.Sprintf("question %d", i)
		if _, err := eng.Query(context.Background(), q, QueryOptions{UseHistory: true}); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}
	if eng.History().Len() != 4 {
		t.Fatalf("expected 4 recorded turns, got %d", eng.History().Len())
	}

	if _, err := eng.Query(context.Background(), "question 5", QueryOptions{UseHistory: true}); err != nil {
		t.Fatalf("final turn failed: %v", err)
	}

	if strings.Contains(generator.lastPrompt, "question 1") {
		t.Errorf("prompt includes turn beyond the window:\n%s", generator.lastPrompt)
	}
	for i := 2; i <= 4; i++ {
		want := fmt.Sprintf("User: question %d", i)
		if !strings.Contains(generator.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, generator.lastPrompt)
		}
	}
	if !strings.Contains(generator.lastPrompt, "Previous conversation:") {
		t.Errorf("expected conversational prompt shape:\n%s", generator.lastPrompt)
	}
}

func TestQueryWithoutHistoryOptDoesNotRecord(t *testing.T) {
	eng := newTestEngine(&fakeRetriever{}, &fakeGenerator{answer: "a"})
	if _, err := eng.Query(context.Background(), "q", QueryOptions{}); err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if eng.History().Len() != 0 {
		t.Errorf("history should stay empty, has %d turns", eng.History().Len())
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewConversationHistory()
	h.Append("q1", "a1")
	h.Append("q2", "a2")
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected empty history after Clear, got %d", h.Len())
	}
	if got := RenderRecent(h, DefaultHistoryWindow); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
}

func TestRenderRecentOrderAndShape(t *testing.T) {
	h := NewConversationHistory()
	h.Append("first", "one")
	h.Append("second", "two")

	got := RenderRecent(h, DefaultHistoryWindow)
	want := "User: first\nAssistant: one\nUser: second\nAssistant: two"
	if got != want {
		t.Errorf("rendered history mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestFormatContextNumbersBlocksInRankOrder(t *testing.T) {
	got := FormatContext([]milvus.Candidate{
		{Text: "alpha", Source: "a.txt"},
		{Text: "beta", Source: "b.txt"},
	})
	want := "[Document 1 - Source: a.txt]\nalpha\n\n[Document 2 - Source: b.txt]\nbeta\n"
	if got != want {
		t.Errorf("formatted context mismatch:\ngot  %q\nwant %q", got, want)
	}
}
