package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// CachedAnswer is a previously computed answer kept for identical questions.
type CachedAnswer struct {
	Answer      string        `json:"answer"`
	Collections []string      `json:"collections,omitempty"`
	Chunks      []CachedChunk `json:"chunks,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// CachedChunk preserves enough of a retrieved chunk to replay the sources
// section of a cached response.
type CachedChunk struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// AnswerCache stores final answers keyed by AnswerCacheKey. Implementations
// are best effort: a miss or a storage failure must never fail the request,
// so the interface carries no errors.
type AnswerCache interface {
	Get(ctx context.Context, key string) (CachedAnswer, bool)
	Set(ctx context.Context, key string, value CachedAnswer)
}

// AnswerCacheKey derives a stable cache key from the question, the searched
// collections and the answering model. Collection order does not matter.
func AnswerCacheKey(question string, collections []string, model string) string {
	sorted := make([]string, len(collections))
	copy(sorted, collections)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(question)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return hex.EncodeToString(h.Sum(nil))
}
