// Package memory implements the chunk backend in process: a bleve in-memory
// index for the full-text ranking and a brute-force cosine scan for the
// semantic ranking. It serves development and tests; the postgres backend is
// the production store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"

	"rag-agent/agent"
	"rag-agent/internal/domain"
)

type memChunk struct {
	id         string
	collection string
	sourceID   string
	ordinal    int
	content    string
	embedding  []float32
	metadata   map[string]any
}

// bleveDoc is the shape indexed for full-text search.
type bleveDoc struct {
	Content string `json:"content"`
}

// Store is the in-process chunk backend.
type Store struct {
	embedder domain.Embedder
	log      *slog.Logger

	mu          sync.RWMutex
	collections map[string]string
	chunks      map[string]*memChunk
	bySource    map[string][]string
	sourceHash  map[string]string
	index       bleve.Index
}

func New(embedder domain.Embedder, log *slog.Logger) (*Store, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Store{
		embedder:    embedder,
		log:         log,
		collections: make(map[string]string),
		chunks:      make(map[string]*memChunk),
		bySource:    make(map[string][]string),
		sourceHash:  make(map[string]string),
		index:       index,
	}, nil
}

// UpsertCollection creates the collection or refreshes its description. An
// empty description leaves an existing description in place.
func (s *Store) UpsertCollection(_ context.Context, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if description == "" {
		if _, exists := s.collections[name]; exists {
			return nil
		}
	}
	s.collections[name] = description
	return nil
}

func (s *Store) SourceHash(_ context.Context, sourceID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceHash[sourceID], nil
}

// ReplaceSourceChunks drops the source's previous chunks from both the chunk
// map and the full-text index, then installs the new set.
func (s *Store) ReplaceSourceChunks(_ context.Context, sourceID, sourceHash string, chunks []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.bySource[sourceID] {
		delete(s.chunks, id)
		if err := s.index.Delete(id); err != nil {
			return fmt.Errorf("failed to remove chunk from index: %w", err)
		}
	}
	delete(s.bySource, sourceID)
	delete(s.sourceHash, sourceID)

	ids := make([]string, 0, len(chunks))
	for _, rec := range chunks {
		s.chunks[rec.ID] = &memChunk{
			id:         rec.ID,
			collection: rec.Collection,
			sourceID:   sourceID,
			ordinal:    rec.Ordinal,
			content:    rec.Content,
			embedding:  rec.Embedding,
			metadata:   rec.Metadata,
		}
		if err := s.index.Index(rec.ID, bleveDoc{Content: rec.Content}); err != nil {
			return fmt.Errorf("failed to index chunk: %w", err)
		}
		ids = append(ids, rec.ID)
	}
	if len(ids) > 0 {
		s.bySource[sourceID] = ids
		s.sourceHash[sourceID] = sourceHash
	}

	s.log.Info("source_chunks_replaced",
		slog.String("source_id", sourceID),
		slog.Int("chunk_count", len(chunks)))
	return nil
}

func (s *Store) ListCollections(_ context.Context) ([]agent.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)

	catalog := make([]agent.Collection, 0, len(names))
	for _, name := range names {
		catalog = append(catalog, agent.Collection{Name: name, Description: s.collections[name]})
	}
	return catalog, nil
}

func (s *Store) Ping(context.Context) error { return nil }

var (
	_ domain.ChunkStore   = (*Store)(nil)
	_ domain.Pinger       = (*Store)(nil)
	_ agent.CatalogSource = (*Store)(nil)
)
