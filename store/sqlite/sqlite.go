// Package sqlite implements quarry.Store using pure-Go SQLite with an
// FTS5 full-text index over each chunk's rendered text. Zero CGO
// required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	quarry "github.com/davrk/quarry"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the
// store emits debug logs with timing and row counts per operation.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements quarry.Store backed by a local SQLite file.
// Chunks are indexed by their LLM-rendered text (content plus visible
// metadata), so extracted titles, questions, and keywords all
// participate in keyword matching.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ quarry.Store = (*Store)(nil)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath (or
// ":memory:"). It opens a single shared connection so all goroutines
// serialize through one writer, eliminating SQLITE_BUSY errors from
// concurrent writes.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with
		// the blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables and the FTS5 index.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, indexed_text)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	s.logger.Debug("sqlite: init done", "elapsed", time.Since(start))
	return nil
}

// StoreDocument persists doc and its chunks in one transaction,
// replacing any previous version of the document.
func (s *Store) StoreDocument(ctx context.Context, doc quarry.Document, chunks []quarry.Chunk) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, source, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, source=excluded.source, created_at=excluded.created_at`,
		doc.ID, doc.Title, doc.Source, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert document: %w", err)
	}

	// Replace the document's chunks and keep the FTS index in sync.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, doc.ID)
	if err != nil {
		return fmt.Errorf("sqlite: clear fts: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("sqlite: clear chunks: %w", err)
	}

	for _, chunk := range chunks {
		var metaJSON *string
		if len(chunk.Metadata) > 0 {
			data, _ := json.Marshal(chunk.Metadata)
			v := string(data)
			metaJSON = &v
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, content, chunk_index, metadata) VALUES (?, ?, ?, ?, ?)`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex, metaJSON)
		if err != nil {
			return fmt.Errorf("sqlite: insert chunk: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks_fts (chunk_id, indexed_text) VALUES (?, ?)`,
			chunk.ID, chunk.Render(quarry.ModeLLM))
		if err != nil {
			return fmt.Errorf("sqlite: insert chunk fts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	s.logger.Debug("sqlite: document stored",
		"document_id", doc.ID, "chunks", len(chunks), "elapsed", time.Since(start))
	return nil
}

// SearchChunks performs full-text keyword search over the chunks'
// rendered text using FTS5, best matches first.
func (s *Store) SearchChunks(ctx context.Context, query string, topK int) ([]quarry.ScoredChunk, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.content, c.chunk_index, c.metadata, chunks_fts.rank
		 FROM chunks_fts
		 JOIN chunks c ON c.id = chunks_fts.chunk_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY chunks_fts.rank
		 LIMIT ?`, match, topK)
	if err != nil {
		return nil, fmt.Errorf("sqlite: keyword search: %w", err)
	}
	defer rows.Close()

	var results []quarry.ScoredChunk
	for rows.Next() {
		var c quarry.Chunk
		var metaJSON sql.NullString
		var rank float64
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &metaJSON, &rank); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &c.Metadata)
		}
		// FTS5 rank is negative (closer to 0 = better). Map -rank
		// into [0, 1).
		raw := -rank
		if raw < 0 {
			raw = 0
		}
		results = append(results, quarry.ScoredChunk{Chunk: c, Score: float32(raw / (1 + raw))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("sqlite: search done", "query", query, "results", len(results))
	return results, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms so
// user punctuation can never be parsed as FTS5 syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'?.,!;:()`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(terms, " OR ")
}
