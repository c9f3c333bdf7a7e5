package utils

import (
	"strings"
	"testing"
)

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("notes.txt", "some chunk text")
	b := ChunkID("notes.txt", "some chunk text")
	if a != b {
		t.Errorf("same input produced different ids: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "doc_") {
		t.Errorf("id %q missing doc_ prefix", a)
	}
	if len(a) != len("doc_")+16 {
		t.Errorf("id %q has unexpected length %d", a, len(a))
	}
}

func TestChunkIDDistinguishesSourceAndText(t *testing.T) {
	base := ChunkID("a.txt", "text")
	if ChunkID("b.txt", "text") == base {
		t.Error("different sources collided")
	}
	if ChunkID("a.txt", "other") == base {
		t.Error("different texts collided")
	}
	// The separator keeps (source, text) pairs unambiguous.
	if ChunkID("a.txtte", "xt") == base {
		t.Error("boundary-shifted pair collided")
	}
}

func TestHashStringDeterministic(t *testing.T) {
	if HashString("q") != HashString("q") {
		t.Error("hash not deterministic")
	}
	if HashString("q") == HashString("r") {
		t.Error("distinct inputs collided")
	}
	if len(HashString("q")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashString("q")))
	}
}
