// Package usecase orchestrates the service flows on top of the agent
// pipeline: answering questions through the answer cache, retrieval-only
// search, and document ingestion.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-agent/agent"
	"rag-agent/internal/domain"
)

var ErrEmptyQuestion = errors.New("question is required")

// RetrievalDefaults are the deployment-level retrieval bounds applied when a
// request leaves Limit unset (zero) or Threshold unset (negative). A zero
// Limit or negative Threshold here defers to the pipeline's own defaults.
type RetrievalDefaults struct {
	Limit     int
	Threshold float64
}

// AskInput carries one question through the full pipeline. Limit overrides
// the default when positive, Threshold when non-negative. SelfCorrect and
// Rerank override the deployment defaults when set; the Rerank flag can only
// opt out of a stage the deployment enabled, never add one.
type AskInput struct {
	Question    string
	Collections []string
	Limit       int
	Threshold   float64
	SelfCorrect *bool
	Rerank      *bool
	BypassCache bool
}

// AskOutput is the normalized answer returned to API clients.
type AskOutput struct {
	Answer      string
	Collections []string
	Context     []Source
	Corrections []CorrectionNote
	Iterations  int
	Cached      bool
}

// Source is one retrieved chunk that backed the answer.
type Source struct {
	ChunkID    string
	Collection string
	Content    string
	Score      float64
}

// CorrectionNote records one rejected answer draft and the judge feedback
// that triggered its regeneration.
type CorrectionNote struct {
	OldAnswer string
	Feedback  string
}

type AskUsecase interface {
	Execute(ctx context.Context, input AskInput) (*AskOutput, error)
}

type askUsecase struct {
	agent    *agent.Agent
	cache    domain.AnswerCache
	model    string
	defaults RetrievalDefaults
	log      *slog.Logger
}

// AskOption customizes optional usecase behavior.
type AskOption func(*askUsecase)

// WithAskDefaults sets the deployment retrieval bounds.
func WithAskDefaults(d RetrievalDefaults) AskOption {
	return func(u *askUsecase) { u.defaults = d }
}

// NewAskUsecase wires the pipeline and the answer cache. cache may be nil
// when caching is disabled; model keys cache entries to the answering model.
func NewAskUsecase(ag *agent.Agent, cache domain.AnswerCache, model string, log *slog.Logger, opts ...AskOption) AskUsecase {
	u := &askUsecase{
		agent:    ag,
		cache:    cache,
		model:    model,
		defaults: RetrievalDefaults{Threshold: -1},
		log:      log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *askUsecase) Execute(ctx context.Context, input AskInput) (*AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	key := domain.AnswerCacheKey(question, input.Collections, u.model)
	if u.cache != nil && !input.BypassCache {
		if cached, ok := u.cache.Get(ctx, key); ok {
			u.log.InfoContext(ctx, "answer_cache_hit", slog.String("cache_key", key))
			return cachedOutput(cached), nil
		}
	}

	c := retrievalContext(question, input.Collections, input.Limit, input.Threshold, u.defaults)
	result := u.agent.Run(ctx, c, askStageOptions(input)...)
	if result.Failed() {
		return nil, fmt.Errorf("pipeline failed: %w", result.Err)
	}

	out := &AskOutput{
		Answer:      result.Answer,
		Collections: result.Collections,
		Context:     toSources(result.ContextUsed),
		Corrections: toCorrectionNotes(result.Corrections),
		Iterations:  result.ReasonIterations,
	}

	if u.cache != nil && !input.BypassCache {
		u.cache.Set(ctx, key, domain.CachedAnswer{
			Answer:      result.Answer,
			Collections: result.Collections,
			Chunks:      toCachedChunks(result.ContextUsed),
			CreatedAt:   time.Now(),
		})
	}
	return out, nil
}

// retrievalContext resolves the effective bounds: the request wins, then the
// deployment defaults, then the pipeline's own defaults.
func retrievalContext(question string, collections []string, limit int, threshold float64, d RetrievalDefaults) agent.Context {
	if limit <= 0 {
		limit = d.Limit
	}
	if threshold < 0 {
		threshold = d.Threshold
	}
	var opts []agent.ContextOption
	if limit > 0 {
		opts = append(opts, agent.WithLimit(limit))
	}
	if threshold >= 0 {
		opts = append(opts, agent.WithThreshold(threshold))
	}
	if len(collections) > 0 {
		opts = append(opts, agent.WithCollections(collections...))
	}
	return agent.NewContext(question, opts...)
}

func askStageOptions(input AskInput) []agent.StageOption {
	var opts []agent.StageOption
	if input.SelfCorrect != nil {
		opts = append(opts, agent.WithSelfCorrect(*input.SelfCorrect))
	}
	// The request can only opt out of reranking, never force it on.
	if input.Rerank != nil && !*input.Rerank {
		opts = append(opts, agent.WithRerank(false))
	}
	return opts
}

func cachedOutput(cached domain.CachedAnswer) *AskOutput {
	out := &AskOutput{
		Answer:      cached.Answer,
		Collections: cached.Collections,
		Cached:      true,
	}
	for _, ch := range cached.Chunks {
		out.Context = append(out.Context, Source{
			ChunkID:    ch.ID,
			Collection: ch.Collection,
			Content:    ch.Content,
			Score:      ch.Score,
		})
	}
	return out
}

func toSources(chunks []agent.Chunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, Source{
			ChunkID:    ch.ID,
			Collection: metaString(ch.Metadata, "collection"),
			Content:    ch.Text,
			Score:      ch.Score,
		})
	}
	return out
}

func toCachedChunks(chunks []agent.Chunk) []domain.CachedChunk {
	out := make([]domain.CachedChunk, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, domain.CachedChunk{
			ID:         ch.ID,
			Collection: metaString(ch.Metadata, "collection"),
			Content:    ch.Text,
			Score:      ch.Score,
		})
	}
	return out
}

func toCorrectionNotes(corrections []agent.Correction) []CorrectionNote {
	out := make([]CorrectionNote, 0, len(corrections))
	for _, c := range corrections {
		out = append(out, CorrectionNote{OldAnswer: c.OldAnswer, Feedback: c.Feedback})
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
