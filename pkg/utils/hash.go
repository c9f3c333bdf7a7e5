package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns the hex sha256 digest of the input. Used for cache keys.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives a stable, content-addressed id for an indexed chunk.
// Hashing source+text keeps ids collision-safe when deletions and
// insertions interleave, unlike count-based id schemes.
func ChunkID(source, text string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + text))
	return "doc_" + hex.EncodeToString(sum[:8])
}
