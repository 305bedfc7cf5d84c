package agent

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// searchPair is one (query, collection) unit of the search fan-out.
type searchPair struct {
	query      string
	collection string
}

// buildPairs forms the cartesian product of queries and collections in
// input order: all collections of the first query, then the next query.
func buildPairs(queries, collections []string) []searchPair {
	pairs := make([]searchPair, 0, len(queries)*len(collections))
	for _, q := range queries {
		for _, col := range collections {
			pairs = append(pairs, searchPair{query: q, collection: col})
		}
	}
	return pairs
}

// Search fans out over the (effective query x collection) pairs, assembles
// one SearchResult per pair in input order, and optionally runs the
// self-correcting retrieval loop: judge sufficiency, search a follow-up
// query, repeat up to the iteration bound.
//
// The collection set resolves as: per-call WithSearchCollections override,
// then Context.Collections, then all collections (searched as ""). Per-pair
// searcher failures produce an empty chunk list for that pair and never fail
// the pipeline. A sufficiency-judge failure accepts the current results.
// No-op when the context has already failed.
func (a *Agent) Search(ctx context.Context, c Context, opts ...StageOption) Context {
	if c.Err != nil {
		return c
	}
	st := applyStageOptions(opts)
	searcher := a.resolveSearcher(st)

	mode := a.cfg.Search.Mode
	if st.mode != "" {
		mode = st.mode
	}
	selfCorrect := a.cfg.Pipeline.SelfCorrectSearch
	if st.selfCorrect != nil {
		selfCorrect = *st.selfCorrect
	}
	maxIterations := a.cfg.Loops.MaxIterations
	if st.maxIterations > 0 {
		maxIterations = st.maxIterations
	}

	collections := st.collections
	if len(collections) == 0 {
		collections = c.Collections
	}
	if len(collections) == 0 {
		collections = []string{""}
	}
	queries := c.effectiveQueries()

	a.emit(ctx, EventSearchStart, nil, map[string]any{"question": c.Question})
	start := time.Now()

	c.QueriesTried = cloneSet(c.QueriesTried)
	for _, q := range queries {
		c.QueriesTried[q] = struct{}{}
	}

	iteration := 1
	c.Results = a.searchPairs(ctx, searcher, buildPairs(queries, collections), c.Limit, c.Threshold, mode, iteration)

	if selfCorrect {
		iteration = a.searchCorrectionLoop(ctx, st, searcher, &c, collections, mode, maxIterations)
	}
	c.ReasonIterations = iteration

	a.emit(ctx, EventSearchStop,
		map[string]float64{
			"result_count":     float64(len(c.Results)),
			"total_iterations": float64(iteration),
			"duration_ms":      float64(time.Since(start).Milliseconds()),
		},
		map[string]any{"question": c.Question})
	return c
}

// searchCorrectionLoop runs the sufficiency loop and returns the final pass
// count. It appends follow-up results to c.Results and records tried
// queries; c is the loop-local copy owned by Search, never the caller's.
func (a *Agent) searchCorrectionLoop(
	ctx context.Context,
	st stageSettings,
	searcher Searcher,
	c *Context,
	collections []string,
	mode SearchMode,
	maxIterations int,
) int {
	judge := a.resolveSufficiencyJudge(st)
	iteration := 1
	if judge == nil {
		a.log.Debug("search_self_correction_skipped_no_judge")
		return iteration
	}

	reason := ""
	for {
		a.emit(ctx, EventSearchSelfCorrectStart,
			map[string]float64{"attempt": float64(iteration)}, nil)

		verdict, err := judge.JudgeSufficiency(ctx, c.Question, dedupeChunks(c.Results))
		if err != nil {
			a.log.Warn("sufficiency_judge_failed_accepting_results",
				slog.String("question", c.Question),
				slog.String("error", err.Error()))
			reason = "judge_error"
			break
		}
		if verdict.Sufficient {
			reason = "sufficient"
			break
		}
		if iteration >= maxIterations {
			reason = "max_iterations"
			break
		}
		if verdict.FollowUpQuery == "" {
			reason = "no_follow_up"
			break
		}
		if _, tried := c.QueriesTried[verdict.FollowUpQuery]; tried {
			reason = "duplicate_follow_up"
			break
		}

		c.QueriesTried[verdict.FollowUpQuery] = struct{}{}
		iteration++
		a.log.Info("searching_follow_up_query",
			slog.String("follow_up", verdict.FollowUpQuery),
			slog.String("missing", verdict.Missing),
			slog.Int("iteration", iteration))

		more := a.searchPairs(ctx, searcher,
			buildPairs([]string{verdict.FollowUpQuery}, collections),
			c.Limit, c.Threshold, mode, iteration)
		c.Results = append(c.Results, more...)
	}

	a.emit(ctx, EventSearchSelfCorrectStop,
		map[string]float64{"iterations": float64(iteration)},
		map[string]any{"reason": reason})
	return iteration
}

// searchPairs executes one fan-out pass with bounded parallelism. Results
// are indexed by pair position, so assembly order matches input order no
// matter which worker finishes first.
func (a *Agent) searchPairs(
	ctx context.Context,
	searcher Searcher,
	pairs []searchPair,
	limit int,
	threshold float64,
	mode SearchMode,
	iteration int,
) []SearchResult {
	results := make([]SearchResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Search.MaxConcurrency)

	for i, pair := range pairs {
		g.Go(func() error {
			chunks, err := a.searchOne(gctx, searcher, pair, limit, threshold, mode)
			if err != nil {
				a.log.Warn("search_pair_failed_returning_empty",
					slog.String("query", pair.query),
					slog.String("collection", pair.collection),
					slog.String("error", err.Error()))
				chunks = nil
			}
			results[i] = SearchResult{
				Question:   pair.query,
				Collection: pair.collection,
				Chunks:     chunks,
				Iterations: iteration,
			}
			return nil
		})
	}
	// Workers swallow their own errors, so Wait only synchronizes.
	_ = g.Wait()
	return results
}

// searchOne retrieves one pair's chunks, fusing the two hybrid rankings
// when the configured mode asks for it.
func (a *Agent) searchOne(
	ctx context.Context,
	searcher Searcher,
	pair searchPair,
	limit int,
	threshold float64,
	mode SearchMode,
) ([]Chunk, error) {
	opts := SearchOptions{
		Limit:          limit,
		Threshold:      threshold,
		Mode:           mode,
		SemanticWeight: a.cfg.Search.Fusion.SemanticWeight,
		FulltextWeight: a.cfg.Search.Fusion.FulltextWeight,
	}

	if mode != ModeHybrid {
		chunks, err := searcher.Search(ctx, pair.query, pair.collection, opts)
		if err != nil {
			return nil, err
		}
		return capChunks(chunks, limit), nil
	}

	semantic, fulltext, err := a.hybridRankings(ctx, searcher, pair, opts)
	if err != nil {
		return nil, err
	}
	fused := FuseRRF(semantic, fulltext, a.cfg.Search.Fusion)
	return capChunks(fused, limit), nil
}

// hybridRankings obtains the semantic and full-text rankings for one pair.
// Backends implementing HybridSearcher return both in a single call;
// otherwise two mode-specific searches run. When exactly one of the two
// split calls fails, the fusion proceeds on the available ranking.
func (a *Agent) hybridRankings(
	ctx context.Context,
	searcher Searcher,
	pair searchPair,
	opts SearchOptions,
) (semantic, fulltext []Chunk, err error) {
	if hs, ok := searcher.(HybridSearcher); ok {
		return hs.HybridSearch(ctx, pair.query, pair.collection, opts)
	}

	semOpts := opts
	semOpts.Mode = ModeSemantic
	semantic, semErr := searcher.Search(ctx, pair.query, pair.collection, semOpts)

	ftOpts := opts
	ftOpts.Mode = ModeFulltext
	fulltext, ftErr := searcher.Search(ctx, pair.query, pair.collection, ftOpts)

	if semErr != nil && ftErr != nil {
		return nil, nil, semErr
	}
	if semErr != nil {
		a.log.Warn("semantic_ranking_failed_fusing_fulltext_only",
			slog.String("query", pair.query),
			slog.String("error", semErr.Error()))
		semantic = nil
	}
	if ftErr != nil {
		a.log.Warn("fulltext_ranking_failed_fusing_semantic_only",
			slog.String("query", pair.query),
			slog.String("error", ftErr.Error()))
		fulltext = nil
	}
	return semantic, fulltext, nil
}

// capChunks truncates a ranking to the requested limit.
func capChunks(chunks []Chunk, limit int) []Chunk {
	if limit > 0 && len(chunks) > limit {
		return chunks[:limit]
	}
	return chunks
}
