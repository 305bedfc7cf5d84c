package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Rerank scores the flattened chunk set against the question, drops chunks
// scoring below the configured threshold, and writes the survivors back into
// their original SearchResults ordered by rerank score. Scores live in
// RerankScores keyed by chunk ID; the chunks themselves keep their retrieval
// scores.
//
// Partial reranking is preferred over none: chunks the reranker left
// unscored (per-chunk failures or candidates beyond the cap) stay in the
// results after the scored survivors, and a reranker failure leaves the
// results untouched. No-op on empty input or a failed context.
func (a *Agent) Rerank(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)

	flattened := dedupeChunks(c.Results)
	if len(flattened) == 0 {
		return c
	}

	reranker := a.resolveReranker(st)
	if reranker == nil {
		a.log.Debug("rerank_skipped_no_implementation")
		return c
	}

	a.emit(ctx, EventRerankStart,
		map[string]float64{"candidate_count": float64(len(flattened))},
		map[string]any{"question": c.Question})
	start := time.Now()

	candidates := capCandidates(flattened, a.cfg.Rerank.MaxCandidates)

	scored, err := reranker.Rerank(ctx, c.Question, candidates)
	if err != nil {
		a.log.Warn("reranking_failed_keeping_retrieval_order",
			slog.String("question", c.Question),
			slog.String("error", err.Error()))
		a.emit(ctx, EventRerankStop,
			map[string]float64{"duration_ms": float64(time.Since(start).Milliseconds())},
			map[string]any{"failed": true})
		return c
	}

	scores := make(map[string]float64, len(scored))
	for _, ch := range scored {
		scores[ch.ID] = ch.Score
	}

	order := rerankOrder(flattened, scores, a.cfg.Rerank.Threshold)
	c.Results = applyRerankOrder(c.Results, order)
	c.RerankScores = scores

	a.emit(ctx, EventRerankStop,
		map[string]float64{
			"duration_ms":    float64(time.Since(start).Milliseconds()),
			"scored_count":   float64(len(scores)),
			"survivor_count": float64(len(order)),
		},
		nil)
	return c
}

// capCandidates bounds the rerank batch, keeping the highest-scored chunks
// when over the cap.
func capCandidates(chunks []Chunk, maxCandidates int) []Chunk {
	if maxCandidates <= 0 || len(chunks) <= maxCandidates {
		return chunks
	}
	capped := append([]Chunk(nil), chunks...)
	sort.SliceStable(capped, func(i, j int) bool {
		return capped[i].Score > capped[j].Score
	})
	return capped[:maxCandidates]
}

// rerankOrder computes the surviving chunk IDs in final order: scored
// survivors descending by rerank score, then unscored chunks in their
// original relative order. Scored chunks below the threshold are dropped.
func rerankOrder(flattened []Chunk, scores map[string]float64, threshold float64) map[string]int {
	var survivors []string
	var unscored []string
	for _, ch := range flattened {
		score, ok := scores[ch.ID]
		switch {
		case !ok:
			unscored = append(unscored, ch.ID)
		case score >= threshold:
			survivors = append(survivors, ch.ID)
		}
	}
	sort.SliceStable(survivors, func(i, j int) bool {
		return scores[survivors[i]] > scores[survivors[j]]
	})

	order := make(map[string]int, len(survivors)+len(unscored))
	pos := 0
	for _, id := range survivors {
		order[id] = pos
		pos++
	}
	for _, id := range unscored {
		order[id] = pos
		pos++
	}
	return order
}

// applyRerankOrder filters each result's chunks to the survivors and sorts
// them by the global rerank order.
func applyRerankOrder(results []SearchResult, order map[string]int) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, res := range results {
		kept := make([]Chunk, 0, len(res.Chunks))
		for _, ch := range res.Chunks {
			if _, ok := order[ch.ID]; ok {
				kept = append(kept, ch)
			}
		}
		sort.SliceStable(kept, func(x, y int) bool {
			return order[kept[x].ID] < order[kept[y].ID]
		})
		res.Chunks = kept
		out[i] = res
	}
	return out
}

// llmReranker is the default LLM-backed reranker: one 0-10 relevance rating
// per chunk. Chunks whose rating call or parse fails are skipped rather than
// failing the batch.
type llmReranker struct {
	llm      LLMClient
	template string
}

func (r *llmReranker) Rerank(ctx context.Context, question string, chunks []Chunk) ([]Chunk, error) {
	scored := make([]Chunk, 0, len(chunks))
	var lastErr error
	for _, ch := range chunks {
		score, err := r.scoreChunk(ctx, question, ch)
		if err != nil {
			lastErr = err
			continue
		}
		rescored := ch
		rescored.Score = score
		scored = append(scored, rescored)
	}
	if len(scored) == 0 && lastErr != nil {
		return nil, fmt.Errorf("no chunk could be scored: %w", lastErr)
	}
	return scored, nil
}

func (r *llmReranker) scoreChunk(ctx context.Context, question string, ch Chunk) (float64, error) {
	prompt := renderPrompt(r.template, question, question)
	prompt = strings.ReplaceAll(prompt, "{passage}", ch.Text)

	resp, err := r.llm.Complete(ctx, prompt, nil)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := unmarshalLenient(resp, &parsed); err != nil {
		return 0, errors.New("rating response is not valid json")
	}
	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}
