package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/domain"
)

type stubEmbedder struct {
	vec []float32
	err error
	got []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.got = texts
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) Model() string { return "stub-embed" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, embedder domain.Embedder) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, embedder, 768, testLogger()), mock
}

func TestStore_EnsureSchema(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS collections")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("vector(768)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("chunks_collection_idx")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("chunks_source_id_idx")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("USING GIN (content_tsv)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("USING hnsw (embedding vector_cosine_ops)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	err := store.EnsureSchema(context.Background())

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EnsureSchema_ExecErrorSurfaces(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnError(errors.New("permission denied"))

	err := store.EnsureSchema(context.Background())

	assert.ErrorContains(t, err, "failed to ensure schema")
}

func TestStore_UpsertCollection(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO collections")).
		WithArgs("docs", "Team documentation").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertCollection(context.Background(), "docs", "Team documentation")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SourceHash(t *testing.T) {
	query := regexp.QuoteMeta("SELECT source_hash FROM chunks WHERE source_id = $1 LIMIT 1")

	tests := []struct {
		name      string
		mockSetup func(pgxmock.PgxPoolIface)
		want      string
		wantErr   string
	}{
		{
			name: "returns stored hash",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).
					WithArgs("doc-1").
					WillReturnRows(pgxmock.NewRows([]string{"source_hash"}).AddRow("abc123"))
			},
			want: "abc123",
		},
		{
			name: "never ingested source yields empty hash",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).
					WithArgs("doc-1").
					WillReturnError(pgx.ErrNoRows)
			},
			want: "",
		},
		{
			name: "query error surfaces",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).
					WithArgs("doc-1").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: "failed to query source hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t, &stubEmbedder{})
			tt.mockSetup(mock)

			got, err := store.SourceHash(context.Background(), "doc-1")

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ReplaceSourceChunks(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE source_id = $1")).
		WithArgs("doc-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(
		pgx.Identifier{"chunks"},
		[]string{"id", "collection", "source_id", "source_hash", "ordinal", "content", "embedding", "metadata"},
	).WillReturnResult(2)
	mock.ExpectCommit()

	chunks := []domain.ChunkRecord{
		{ID: "11111111-1111-1111-1111-111111111111", Collection: "docs", Ordinal: 0, Content: "alpha", Embedding: []float32{0.1, 0.2}},
		{ID: "22222222-2222-2222-2222-222222222222", Collection: "docs", Ordinal: 1, Content: "beta", Embedding: []float32{0.3, 0.4}},
	}
	err := store.ReplaceSourceChunks(context.Background(), "doc-1", "hash-1", chunks)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceSourceChunks_EmptySetDeletesOnly(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE source_id = $1")).
		WithArgs("doc-gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCommit()

	err := store.ReplaceSourceChunks(context.Background(), "doc-gone", "hash-2", nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceSourceChunks_DeleteErrorRollsBack(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chunks WHERE source_id = $1")).
		WithArgs("doc-1").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.ReplaceSourceChunks(context.Background(), "doc-1", "hash-1", nil)

	assert.ErrorContains(t, err, "failed to delete old chunks")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListCollections(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description FROM collections ORDER BY name")).
		WillReturnRows(pgxmock.NewRows([]string{"name", "description"}).
			AddRow("docs", "Team documentation").
			AddRow("runbooks", "Operational runbooks"))

	got, err := store.ListCollections(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "docs", got[0].Name)
	assert.Equal(t, "Team documentation", got[0].Description)
	assert.Equal(t, "runbooks", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListCollections_EmptyCatalog(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description FROM collections ORDER BY name")).
		WillReturnRows(pgxmock.NewRows([]string{"name", "description"}))

	got, err := store.ListCollections(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Ping(t *testing.T) {
	store, mock := newTestStore(t, &stubEmbedder{})

	mock.ExpectPing()

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
