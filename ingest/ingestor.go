package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	quarry "github.com/davrk/quarry"
)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Enricher adds model-generated metadata to chunks. Implemented by
// extract.Pipeline; decoupled here so the ingestor does not depend on
// any particular extractor stack.
type Enricher interface {
	Run(ctx context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error)
}

// IngestResult holds the outcome of ingesting one document.
type IngestResult struct {
	DocumentID string
	ChunkCount int
}

// Ingestor provides end-to-end ingestion: chunk → enrich → store.
type Ingestor struct {
	store    quarry.Store
	chunker  *Chunker
	enricher Enricher
	logger   *slog.Logger
	tracer   quarry.Tracer
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunker sets the chunker (default: 512-token chunks, 128 overlap).
func WithChunker(c *Chunker) Option {
	return func(ing *Ingestor) { ing.chunker = c }
}

// WithEnricher sets the metadata enricher applied between chunking and
// storage. When not set, chunks are stored unenriched.
func WithEnricher(e Enricher) Option {
	return func(ing *Ingestor) { ing.enricher = e }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// WithTracer sets a span tracer for ingest operations.
func WithTracer(t quarry.Tracer) Option {
	return func(ing *Ingestor) { ing.tracer = t }
}

// NewIngestor creates an Ingestor writing to store.
func NewIngestor(store quarry.Store, opts ...Option) *Ingestor {
	ing := &Ingestor{store: store}
	for _, o := range opts {
		o(ing)
	}
	if ing.chunker == nil {
		ing.chunker, _ = NewChunker()
	}
	if ing.logger == nil {
		ing.logger = nopLogger
	}
	return ing
}

// Ingest chunks, enriches, and stores each document. Enrichment
// failures degrade rather than abort: the document is still indexed
// with whatever metadata was applied, and the failure is carried in
// the joined error so no failure is silently dropped.
func (ing *Ingestor) Ingest(ctx context.Context, docs ...quarry.Document) ([]IngestResult, error) {
	var results []IngestResult
	var errs []error

	for _, doc := range docs {
		if ing.tracer != nil {
			ctx2, span := ing.tracer.Start(ctx, "ingest.document",
				quarry.StringAttr("document_id", doc.ID),
				quarry.StringAttr("source", doc.Source))
			res, err := ing.ingestOne(ctx2, doc)
			if err != nil {
				span.Error(err)
			}
			span.End()
			if res.DocumentID != "" {
				results = append(results, res)
			}
			if err != nil {
				errs = append(errs, err)
			}
			continue
		}

		res, err := ing.ingestOne(ctx, doc)
		if res.DocumentID != "" {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// ingestOne handles a single document. A store failure skips the
// document; an enrichment failure does not.
func (ing *Ingestor) ingestOne(ctx context.Context, doc quarry.Document) (IngestResult, error) {
	chunks, err := ing.chunker.Split(doc)
	if err != nil {
		return IngestResult{}, fmt.Errorf("chunk %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		ing.logger.Warn("document produced no chunks", "document_id", doc.ID, "source", doc.Source)
		return IngestResult{}, nil
	}

	var enrichErr error
	if ing.enricher != nil {
		enriched, err := ing.enricher.Run(ctx, chunks)
		if enriched != nil {
			chunks = enriched
		}
		if err != nil {
			enrichErr = fmt.Errorf("enrich %s: %w", doc.ID, err)
			ing.logger.Warn("enrichment degraded, indexing anyway",
				"document_id", doc.ID, "err", err)
		}
	}

	if err := ing.store.StoreDocument(ctx, doc, chunks); err != nil {
		return IngestResult{}, errors.Join(enrichErr, fmt.Errorf("store %s: %w", doc.ID, err))
	}

	ing.logger.Info("document ingested",
		"document_id", doc.ID, "source", doc.Source, "chunks", len(chunks))
	return IngestResult{DocumentID: doc.ID, ChunkCount: len(chunks)}, enrichErr
}
