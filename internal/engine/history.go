package engine

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultHistoryWindow is how many recent exchanges fold into a
// conversational prompt.
const DefaultHistoryWindow = 3

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// ConversationHistory is an in-memory, append-only record of completed
// exchanges. Safe for concurrent use.
type ConversationHistory struct {
	mu    sync.Mutex
	turns []Turn
}

func NewConversationHistory() *ConversationHistory {
	return &ConversationHistory{}
}

func (h *ConversationHistory) Append(question, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, Turn{Question: question, Answer: answer})
}

// Recent returns the last n turns in chronological order. Fewer turns than
// n returns all of them.
func (h *ConversationHistory) Recent(n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

func (h *ConversationHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *ConversationHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// RenderRecent formats the last n turns as alternating User/Assistant lines
// for prompt assembly.
func RenderRecent(h *ConversationHistory, n int) string {
	turns := h.Recent(n)
	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("User: %s", t.Question))
		lines = append(lines, fmt.Sprintf("Assistant: %s", t.Answer))
	}
	return strings.Join(lines, "\n")
}
