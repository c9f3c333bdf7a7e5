package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewRejectsBadParams(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		wantErr error
	}{
		{"zero size", 0, 0, ErrInvalidSize},
		{"negative size", -10, 0, ErrInvalidSize},
		{"negative overlap", 100, -1, ErrInvalidOverlap},
		{"overlap equals size", 100, 100, ErrInvalidOverlap},
		{"overlap exceeds size", 100, 150, ErrInvalidOverlap},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("New(%d, %d) err = %v, want %v", tc.size, tc.overlap, err, tc.wantErr)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := New(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Split(""); len(got) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c, _ := New(1000, 200)

	text := "The capital of France is Paris. Paris is known for the Eiffel Tower."
	chunks := c.Split(text)

	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("chunk = %q, want original text", chunks[0])
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c, _ := New(40, 10)

	text := "First sentence here. Second sentence goes on and on and on for a while."
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0] != "First sentence here." {
		t.Errorf("first chunk = %q, want cut after the period", chunks[0])
	}
}

func TestSplitNonFinalChunksWithinSize(t *testing.T) {
	c, _ := New(50, 10)

	text := strings.Repeat("Some sentences are short. Others run longer than that. ", 20)
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if len(chunk) > 50 {
			t.Errorf("chunk %d length %d exceeds size 50", i, len(chunk))
		}
	}
}

func TestSplitNoEmptyChunks(t *testing.T) {
	c, _ := New(5, 1)

	chunks := c.Split("a.    b.    c.    ")
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitIdempotent(t *testing.T) {
	c, _ := New(80, 20)

	text := strings.Repeat("A quick brown fox jumps over the lazy dog. ", 15)
	first := c.Split(text)
	second := c.Split(text)

	if !reflect.DeepEqual(first, second) {
		t.Error("chunking the same text twice produced different results")
	}
}

func TestSplitCoversInput(t *testing.T) {
	c, _ := New(60, 15)

	text := strings.Repeat("Coverage matters here. Nothing should be dropped. ", 10)
	chunks := c.Split(text)

	// With overlap, every word of the input must survive somewhere. Trimming
	// only removes chunk-edge whitespace, never words.
	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Fatalf("word %q missing from chunk output", word)
		}
	}
}

func TestSplitTextWithoutTerminators(t *testing.T) {
	c, _ := New(10, 3)

	text := strings.Repeat("x", 25)
	chunks := c.Split(text)

	if len(chunks) == 0 {
		t.Fatal("expected chunks for unpunctuated text")
	}
	for i, chunk := range chunks[:len(chunks)-1] {
		if len(chunk) != 10 {
			t.Errorf("chunk %d length = %d, want hard cut at 10", i, len(chunk))
		}
	}
}

func TestSplitTerminates(t *testing.T) {
	// Terminator at the very start of a window used to be able to stall the
	// walk when the overlap pulled the next start backwards.
	c, _ := New(10, 8)

	text := ". " + strings.Repeat("word ", 50)
	chunks := c.Split(text)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}
