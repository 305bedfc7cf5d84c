// Package postgres implements the chunk backend on PostgreSQL: pgvector for
// the semantic ranking, tsvector for the full-text ranking, and COPY for
// bulk ingest.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"rag-agent/agent"
	"rag-agent/internal/domain"
)

// DB is the pool surface the store uses. *pgxpool.Pool satisfies it, as does
// the pgxmock pool in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// Store is the PostgreSQL chunk backend.
type Store struct {
	db       DB
	embedder domain.Embedder
	dims     int
	log      *slog.Logger
}

func New(db DB, embedder domain.Embedder, dims int, log *slog.Logger) *Store {
	return &Store{db: db, embedder: embedder, dims: dims, log: log}
}

// EnsureSchema creates the extension, tables and indexes if missing. The
// embedding column dimension is fixed at creation, so changing the embedding
// model's dimensionality needs a migration.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			name        TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id          UUID PRIMARY KEY,
			collection  TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
			source_id   TEXT NOT NULL,
			source_hash TEXT NOT NULL,
			ordinal     INT NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d),
			content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
			metadata    JSONB,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS chunks_collection_idx ON chunks (collection)`,
		`CREATE INDEX IF NOT EXISTS chunks_source_id_idx ON chunks (source_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_content_tsv_idx ON chunks USING GIN (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	s.log.Info("postgres_schema_ensured", slog.Int("embedding_dims", s.dims))
	return nil
}

// UpsertCollection creates the collection or refreshes its description. An
// empty description leaves an existing description in place.
func (s *Store) UpsertCollection(ctx context.Context, name, description string) error {
	query := `
		INSERT INTO collections (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			description = COALESCE(NULLIF(EXCLUDED.description, ''), collections.description),
			updated_at  = NOW()
	`
	if _, err := s.db.Exec(ctx, query, name, description); err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	return nil
}

// SourceHash returns the stored content hash for a source, or "" when the
// source has never been ingested.
func (s *Store) SourceHash(ctx context.Context, sourceID string) (string, error) {
	query := `SELECT source_hash FROM chunks WHERE source_id = $1 LIMIT 1`

	var hash string
	err := s.db.QueryRow(ctx, query, sourceID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query source hash: %w", err)
	}
	return hash, nil
}

// ReplaceSourceChunks swaps all chunks of a source for the given set inside
// one transaction, so readers never observe a partially ingested source.
func (s *Store) ReplaceSourceChunks(ctx context.Context, sourceID, sourceHash string, chunks []domain.ChunkRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	if len(chunks) > 0 {
		rows := make([][]any, len(chunks))
		for i, c := range chunks {
			rows[i] = []any{
				c.ID,
				c.Collection,
				sourceID,
				sourceHash,
				c.Ordinal,
				c.Content,
				pgvector.NewVector(c.Embedding),
				c.Metadata,
			}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"chunks"},
			[]string{"id", "collection", "source_id", "source_hash", "ordinal", "content", "embedding", "metadata"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to bulk insert chunks: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("source_chunks_replaced",
		slog.String("source_id", sourceID),
		slog.Int("chunk_count", len(chunks)))
	return nil
}

// ListCollections returns the catalog ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]agent.Collection, error) {
	rows, err := s.db.Query(ctx, `SELECT name, description FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var catalog []agent.Collection
	for rows.Next() {
		var col agent.Collection
		if err := rows.Scan(&col.Name, &col.Description); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		catalog = append(catalog, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return catalog, nil
}

// Ping reports backend liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

var (
	_ domain.ChunkStore   = (*Store)(nil)
	_ domain.Pinger       = (*Store)(nil)
	_ agent.CatalogSource = (*Store)(nil)
)
