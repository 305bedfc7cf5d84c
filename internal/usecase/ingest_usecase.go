package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"rag-agent/internal/domain"
	"rag-agent/internal/ingest"
)

var ErrEmptyCollection = errors.New("collection is required")

// IngestInput is a batch of documents bound for one collection. A document
// may override the target collection; overridden collections are created on
// the fly with an empty description.
type IngestInput struct {
	Collection            string
	CollectionDescription string
	Documents             []domain.Document
}

// IngestResult reports what a batch actually did. Skipped counts documents
// whose source hash matched the stored one.
type IngestResult struct {
	Indexed int
	Skipped int
	Chunks  int
}

type IngestUsecase interface {
	Execute(ctx context.Context, input IngestInput) (*IngestResult, error)
}

type ingestUsecase struct {
	store    domain.ChunkStore
	embedder domain.Embedder
	chunker  *ingest.Chunker
	log      *slog.Logger
}

func NewIngestUsecase(store domain.ChunkStore, embedder domain.Embedder, log *slog.Logger) IngestUsecase {
	return &ingestUsecase{
		store:    store,
		embedder: embedder,
		chunker:  ingest.NewChunker(),
		log:      log,
	}
}

func (u *ingestUsecase) Execute(ctx context.Context, input IngestInput) (*IngestResult, error) {
	collection := strings.TrimSpace(input.Collection)
	if collection == "" {
		return nil, ErrEmptyCollection
	}

	if err := u.store.UpsertCollection(ctx, collection, input.CollectionDescription); err != nil {
		return nil, fmt.Errorf("failed to upsert collection: %w", err)
	}
	upserted := map[string]bool{collection: true}

	result := &IngestResult{}
	for i, doc := range input.Documents {
		if strings.TrimSpace(doc.SourceID) == "" {
			return nil, fmt.Errorf("document %d: source id is required", i)
		}

		hash := ingest.SourceHash(doc.Title, doc.Text)
		stored, err := u.store.SourceHash(ctx, doc.SourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to check source hash: %w", err)
		}
		if stored == hash {
			u.log.DebugContext(ctx, "document_unchanged", slog.String("source_id", doc.SourceID))
			result.Skipped++
			continue
		}

		target := collection
		if doc.Collection != "" {
			target = doc.Collection
			if !upserted[target] {
				if err := u.store.UpsertCollection(ctx, target, ""); err != nil {
					return nil, fmt.Errorf("failed to upsert collection: %w", err)
				}
				upserted[target] = true
			}
		}

		records, err := u.buildRecords(ctx, doc, target)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare document %q: %w", doc.SourceID, err)
		}

		if err := u.store.ReplaceSourceChunks(ctx, doc.SourceID, hash, records); err != nil {
			return nil, fmt.Errorf("failed to store chunks for %q: %w", doc.SourceID, err)
		}
		result.Indexed++
		result.Chunks += len(records)
	}

	u.log.InfoContext(ctx, "documents_ingested",
		slog.String("collection", collection),
		slog.Int("indexed", result.Indexed),
		slog.Int("skipped", result.Skipped),
		slog.Int("chunks", result.Chunks))
	return result, nil
}

// buildRecords chunks and embeds one document. A document whose text yields
// no chunks produces an empty record set, which still replaces (clears) any
// previously stored chunks.
func (u *ingestUsecase) buildRecords(ctx context.Context, doc domain.Document, collection string) ([]domain.ChunkRecord, error) {
	pieces := u.chunker.Chunk(doc.Text)
	if len(pieces) == 0 {
		return nil, nil
	}

	contents := make([]string, len(pieces))
	for i, p := range pieces {
		contents[i] = p.Content
	}
	vectors, err := u.embedder.Embed(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("embeddings count mismatch: got %d want %d", len(vectors), len(pieces))
	}

	model := u.embedder.Model()
	records := make([]domain.ChunkRecord, len(pieces))
	for i, p := range pieces {
		records[i] = domain.ChunkRecord{
			ID:         uuid.NewString(),
			Collection: collection,
			Ordinal:    p.Ordinal,
			Content:    p.Content,
			Embedding:  vectors[i],
			Metadata:   chunkMetadata(doc, collection, model),
		}
	}
	return records, nil
}

// chunkMetadata copies the document metadata and overlays the fields the
// retrieval side depends on. The chunker version and embedding model are
// recorded so stored chunks reveal what produced them.
func chunkMetadata(doc domain.Document, collection, model string) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+5)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["source_id"] = doc.SourceID
	meta["title"] = doc.Title
	meta["collection"] = collection
	meta["chunker"] = ingest.Version
	meta["embedder"] = model
	return meta
}
