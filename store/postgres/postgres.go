// Package postgres implements quarry.Store using PostgreSQL with
// tsvector full-text search over each chunk's rendered text.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	quarry "github.com/davrk/quarry"
)

// Store implements quarry.Store backed by PostgreSQL. Chunks are
// indexed by their LLM-rendered text (content plus visible metadata)
// with a GIN index over to_tsvector.
type Store struct {
	pool *pgxpool.Pool
	lang string
}

var _ quarry.Store = (*Store)(nil)

// Option configures a PostgreSQL Store.
type Option func(*Store)

// WithTextSearchConfig sets the text search configuration used for
// tsvector and tsquery (default "english").
func WithTextSearchConfig(lang string) Option {
	return func(s *Store) { s.lang = lang }
}

// New creates a Store using an existing pgxpool.Pool. The caller owns
// the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, lang: "english"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates all required tables and indexes.
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			metadata JSONB,
			indexed_text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_fts_idx ON chunks USING gin(to_tsvector('%s', indexed_text))`, s.lang),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// StoreDocument persists doc and its chunks in one transaction,
// replacing any previous version of the document.
func (s *Store) StoreDocument(ctx context.Context, doc quarry.Document, chunks []quarry.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, title, source, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   source = EXCLUDED.source,
		   created_at = EXCLUDED.created_at`,
		doc.ID, doc.Title, doc.Source, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("postgres: clear chunks: %w", err)
	}

	for _, chunk := range chunks {
		var metaJSON *string
		if len(chunk.Metadata) > 0 {
			data, _ := json.Marshal(chunk.Metadata)
			v := string(data)
			metaJSON = &v
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, content, chunk_index, metadata, indexed_text)
			 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex, metaJSON, chunk.Render(quarry.ModeLLM))
		if err != nil {
			return fmt.Errorf("postgres: insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// SearchChunks performs full-text keyword search using
// plainto_tsquery and ts_rank, best matches first.
func (s *Store) SearchChunks(ctx context.Context, query string, topK int) ([]quarry.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT c.id, c.document_id, c.content, c.chunk_index, c.metadata,
		        ts_rank(to_tsvector('%[1]s', c.indexed_text), plainto_tsquery('%[1]s', $1)) AS score
		 FROM chunks c
		 WHERE to_tsvector('%[1]s', c.indexed_text) @@ plainto_tsquery('%[1]s', $1)
		 ORDER BY score DESC
		 LIMIT $2`, s.lang), query, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword search: %w", err)
	}
	defer rows.Close()

	var results []quarry.ScoredChunk
	for rows.Next() {
		var c quarry.Chunk
		var metaJSON *string
		var score float32
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		if metaJSON != nil {
			_ = json.Unmarshal([]byte(*metaJSON), &c.Metadata)
		}
		if score > 1 {
			score = 1
		}
		results = append(results, quarry.ScoredChunk{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }
