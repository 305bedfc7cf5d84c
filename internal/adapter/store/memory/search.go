package memory

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/blevesearch/bleve"

	"rag-agent/agent"
)

// Search runs one retrieval against the requested ranking. As with the
// postgres backend, the threshold applies to the semantic ranking's cosine
// similarity; the full-text ranking keeps bleve's raw scores.
func (s *Store) Search(ctx context.Context, query, collection string, opts agent.SearchOptions) ([]agent.Chunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = agent.DefaultLimit
	}

	switch opts.Mode {
	case agent.ModeFulltext:
		return s.fulltextSearch(query, collection, limit)
	case agent.ModeHybrid:
		semantic, fulltext, err := s.HybridSearch(ctx, query, collection, opts)
		if err != nil {
			return nil, err
		}
		fused := agent.FuseRRF(semantic, fulltext, s.fusionConfig(opts))
		if len(fused) > limit {
			fused = fused[:limit]
		}
		return fused, nil
	default:
		vec, err := s.embedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return s.semanticSearch(vec, collection, limit, opts.Threshold), nil
	}
}

// HybridSearch returns the semantic and full-text rankings side by side.
func (s *Store) HybridSearch(ctx context.Context, query, collection string, opts agent.SearchOptions) ([]agent.Chunk, []agent.Chunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = agent.DefaultLimit
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	semantic := s.semanticSearch(vec, collection, limit, opts.Threshold)
	fulltext, err := s.fulltextSearch(query, collection, limit)
	if err != nil {
		return nil, nil, err
	}
	return semantic, fulltext, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

func (s *Store) semanticSearch(vec []float32, collection string, limit int, threshold float64) []agent.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk *memChunk
		score float64
	}
	var ranked []scored
	for _, c := range s.chunks {
		if collection != "" && c.collection != collection {
			continue
		}
		score := cosine(vec, c.embedding)
		if threshold > 0 && score < threshold {
			continue
		}
		ranked = append(ranked, scored{chunk: c, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.id < ranked[j].chunk.id
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]agent.Chunk, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, toAgentChunk(r.chunk, r.score))
	}
	return out
}

// fulltextSearch over-fetches because the collection filter is applied after
// the index query. Fine at the corpus sizes this backend is meant for.
func (s *Store) fulltextSearch(query, collection string, limit int) ([]agent.Chunk, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit*3, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to run fulltext search: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []agent.Chunk
	for _, hit := range res.Hits {
		c, ok := s.chunks[hit.ID]
		if !ok {
			continue
		}
		if collection != "" && c.collection != collection {
			continue
		}
		out = append(out, toAgentChunk(c, hit.Score))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) fusionConfig(opts agent.SearchOptions) agent.FusionConfig {
	cfg := agent.DefaultFusionConfig()
	if opts.SemanticWeight > 0 {
		cfg.SemanticWeight = opts.SemanticWeight
	}
	if opts.FulltextWeight > 0 {
		cfg.FulltextWeight = opts.FulltextWeight
	}
	return cfg
}

func toAgentChunk(c *memChunk, score float64) agent.Chunk {
	return agent.Chunk{
		ID:       c.id,
		Text:     c.content,
		Score:    score,
		Metadata: c.metadata,
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var (
	_ agent.Searcher       = (*Store)(nil)
	_ agent.HybridSearcher = (*Store)(nil)
)
