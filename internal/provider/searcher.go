// Package provider implements the external collaborator boundaries of the
// retrieval core: vector search over PostgreSQL/pgvector, query rewriting
// and generation via Genkit models.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/quillon/quill/internal/retrieval"
)

// searchTimeout bounds a single embed-plus-query round trip.
const searchTimeout = 10 * time.Second

// DB is the database boundary, satisfied by *pgxpool.Pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Embedder is the embedding boundary. Any genkit ai.Embedder satisfies it;
// the searcher only ever calls Embed, so fakes need not carry the rest of
// the plugin registration surface.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// PgvectorSearcher performs similarity search against the documents table.
// It embeds the query with the configured embedder and ranks by cosine
// distance.
//
// Safe for concurrent use.
type PgvectorSearcher struct {
	db       DB
	embedder Embedder
	logger   *slog.Logger
}

// NewPgvectorSearcher creates a searcher.
func NewPgvectorSearcher(db DB, embedder Embedder, logger *slog.Logger) *PgvectorSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorSearcher{db: db, embedder: embedder, logger: logger}
}

// Search embeds query and returns the topK nearest chunks ordered by
// descending similarity. Errors propagate unchanged; the orchestrator owns
// retry and fallback decisions.
func (s *PgvectorSearcher) Search(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	embedding := pgvector.NewVector(resp.Embeddings[0].Embedding)

	rows, err := s.db.Query(queryCtx,
		`SELECT file_id, file_name, url, content, 1 - (embedding <=> $1) AS score
		 FROM documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		&embedding, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var chunks []retrieval.Chunk
	for rows.Next() {
		var (
			chunk retrieval.Chunk
			url   pgtype.Text
		)
		if err := rows.Scan(&chunk.FileID, &chunk.FileName, &url, &chunk.Content, &chunk.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		if url.Valid {
			chunk.URL = url.String
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	s.logger.Debug("vector search complete", "top_k", topK, "results", len(chunks))
	return chunks, nil
}
