package handlers

import "testing"

func TestAnswerCacheKeySeparatesFilteredQuestions(t *testing.T) {
	unfiltered := answerCacheKey("What is the capital of France?", "", false)
	filtered := answerCacheKey("What is the capital of France?", "a.txt", false)
	if unfiltered == filtered {
		t.Error("filtered and unfiltered questions must not share a cache entry")
	}

	otherSource := answerCacheKey("What is the capital of France?", "b.txt", false)
	if filtered == otherSource {
		t.Error("different source filters must not share a cache entry")
	}
}

func TestAnswerCacheKeySeparatesContextResponses(t *testing.T) {
	plain := answerCacheKey("q", "", false)
	withContext := answerCacheKey("q", "", true)
	if plain == withContext {
		t.Error("responses with and without context must not share a cache entry")
	}
}

func TestAnswerCacheKeyStable(t *testing.T) {
	a := answerCacheKey("q", "a.txt", true)
	b := answerCacheKey("q", "a.txt", true)
	if a != b {
		t.Errorf("same inputs produced different keys: %s vs %s", a, b)
	}
}
