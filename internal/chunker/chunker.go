package chunker

import (
	"errors"
	"strings"
)

var (
	ErrInvalidSize    = errors.New("chunk size must be > 0")
	ErrInvalidOverlap = errors.New("chunk overlap must be >= 0 and < chunk size")
)

// sentence terminators searched for, rightmost wins
var terminators = []string{". ", "? ", "! "}

// Chunker splits text into overlapping, sentence-aligned segments. It walks
// the text in a sliding window of Size characters; when the window's right
// edge falls inside the text, the edge is pulled back to just after the
// rightmost sentence terminator found in the window, so chunks prefer
// linguistic boundaries over hard character cuts.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks text. Chunks are whitespace-trimmed and never empty; an empty
// input yields no chunks. The same input always yields the same chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	var chunks []string
	n := len(text)
	start := 0

	for start < n {
		end := start + c.size
		atEnd := end >= n
		if atEnd {
			end = n
		} else {
			if cut := lastTerminator(text[start:end]); cut != -1 {
				end = start + cut + 1
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if atEnd {
			break
		}

		next := end - c.overlap
		if next <= start {
			// A terminator very early in the window can pull end back far
			// enough that the overlap would stall the walk. Always advance.
			next = end
		}
		start = next
	}

	return chunks
}

// lastTerminator returns the offset of the rightmost sentence terminator
// wholly contained in window, or -1.
func lastTerminator(window string) int {
	cut := -1
	for _, term := range terminators {
		if i := strings.LastIndex(window, term); i > cut {
			cut = i
		}
	}
	return cut
}
