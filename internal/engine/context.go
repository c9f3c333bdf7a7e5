package engine

import (
	"fmt"
	"strings"

	"github.com/datachat/backend/internal/vector/milvus"
)

// NoContextFound is the assembled context when nothing survives the
// distance cutoff. It is prompt input, never an answer.
const NoContextFound = "No relevant context found."

// FilterByDistance keeps candidates whose L2 distance is at or below
// maxDistance, preserving the incoming ranking order.
func FilterByDistance(candidates []milvus.Candidate, maxDistance float64) []milvus.Candidate {
	filtered := make([]milvus.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if float64(c.Distance) <= maxDistance {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// FormatContext renders retained candidates as numbered, source-attributed
// blocks for prompt assembly. Numbering follows the ranked order.
func FormatContext(candidates []milvus.Candidate) string {
	if len(candidates) == 0 {
		return NoContextFound
	}

	blocks := make([]string, len(candidates))
	for i, c := range candidates {
		blocks[i] = fmt.Sprintf("[Document %d - Source: %s]\n%s\n", i+1, c.Source, c.Text)
	}
	return strings.Join(blocks, "\n")
}
