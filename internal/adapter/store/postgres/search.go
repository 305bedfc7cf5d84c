package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"rag-agent/agent"
)

const semanticSearchQuery = `
	SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
	FROM chunks
	WHERE ($2 = '' OR collection = $2)
	ORDER BY embedding <=> $1
	LIMIT $3
`

const fulltextSearchQuery = `
	SELECT id, content, metadata, ts_rank_cd(content_tsv, q) AS score
	FROM chunks, websearch_to_tsquery('english', $1) AS q
	WHERE content_tsv @@ q AND ($2 = '' OR collection = $2)
	ORDER BY score DESC
	LIMIT $3
`

// Search runs one retrieval against the requested ranking. The threshold
// applies to the semantic ranking's cosine similarity; the full-text ranking
// is already bounded by its match predicate. In hybrid mode both rankings run
// and are fused with reciprocal rank fusion.
func (s *Store) Search(ctx context.Context, query, collection string, opts agent.SearchOptions) ([]agent.Chunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = agent.DefaultLimit
	}

	switch opts.Mode {
	case agent.ModeFulltext:
		return s.fulltextSearch(ctx, query, collection, limit)
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
		return s.semanticSearch(ctx, vec, collection, limit, opts.Threshold)
	}
}

// HybridSearch returns the semantic and full-text rankings side by side. The
// query is embedded once, then both rankings run concurrently.
func (s *Store) HybridSearch(ctx context.Context, query, collection string, opts agent.SearchOptions) ([]agent.Chunk, []agent.Chunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = agent.DefaultLimit
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	var semantic, fulltext []agent.Chunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semantic, err = s.semanticSearch(gctx, vec, collection, limit, opts.Threshold)
		return err
	})
	g.Go(func() error {
		var err error
		fulltext, err = s.fulltextSearch(gctx, query, collection, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return semantic, fulltext, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) (pgvector.Vector, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return pgvector.Vector{}, fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}
	return pgvector.NewVector(vecs[0]), nil
}

func (s *Store) semanticSearch(ctx context.Context, vec pgvector.Vector, collection string, limit int, threshold float64) ([]agent.Chunk, error) {
	rows, err := s.db.Query(ctx, semanticSearchQuery, vec, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run semantic search: %w", err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return chunks, nil
	}
	kept := chunks[:0]
	for _, c := range chunks {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

func (s *Store) fulltextSearch(ctx context.Context, query, collection string, limit int) ([]agent.Chunk, error) {
	rows, err := s.db.Query(ctx, fulltextSearchQuery, query, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run fulltext search: %w", err)
	}
	return scanChunks(rows)
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

func scanChunks(rows pgx.Rows) ([]agent.Chunk, error) {
	defer rows.Close()

	var chunks []agent.Chunk
	for rows.Next() {
		var (
			c    agent.Chunk
			meta map[string]any
		)
		if err := rows.Scan(&c.ID, &c.Text, &meta, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Metadata = meta
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

var (
	_ agent.Searcher       = (*Store)(nil)
	_ agent.HybridSearcher = (*Store)(nil)
)
