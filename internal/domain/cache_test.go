package domain_test

import (
	"testing"

	"rag-agent/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestAnswerCacheKey(t *testing.T) {
	t.Run("Same input produces same key", func(t *testing.T) {
		k1 := domain.AnswerCacheKey("what is rrf?", []string{"docs"}, "gemma3:4b")
		k2 := domain.AnswerCacheKey("what is rrf?", []string{"docs"}, "gemma3:4b")
		assert.Equal(t, k1, k2)
	})

	t.Run("Collection order does not matter", func(t *testing.T) {
		k1 := domain.AnswerCacheKey("q", []string{"a", "b"}, "m")
		k2 := domain.AnswerCacheKey("q", []string{"b", "a"}, "m")
		assert.Equal(t, k1, k2)
	})

	t.Run("Question whitespace is normalized", func(t *testing.T) {
		k1 := domain.AnswerCacheKey("q", nil, "m")
		k2 := domain.AnswerCacheKey("  q \n", nil, "m")
		assert.Equal(t, k1, k2)
	})

	t.Run("Different model produces different key", func(t *testing.T) {
		k1 := domain.AnswerCacheKey("q", []string{"a"}, "m1")
		k2 := domain.AnswerCacheKey("q", []string{"a"}, "m2")
		assert.NotEqual(t, k1, k2)
	})

	t.Run("Different collections produce different keys", func(t *testing.T) {
		k1 := domain.AnswerCacheKey("q", []string{"a"}, "m")
		k2 := domain.AnswerCacheKey("q", []string{"b"}, "m")
		assert.NotEqual(t, k1, k2)
	})

	t.Run("Does not mutate caller slice", func(t *testing.T) {
		cols := []string{"b", "a"}
		domain.AnswerCacheKey("q", cols, "m")
		assert.Equal(t, []string{"b", "a"}, cols)
	})
}
