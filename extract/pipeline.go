package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	quarry "github.com/davrk/quarry"
)

// Pipeline applies an ordered list of extractors to chunks, merging
// each extractor's output into the chunks' metadata.
//
// Later extractors override earlier ones on key collision; the fold is
// strictly left-to-right, which is the only deterministic tie-break
// absent extractor priorities. Extractors run one after another (a
// later extractor may read keys written earlier), while chunk-level
// work inside one extractor call may be concurrent.
//
// Re-running a pipeline overwrites its previous values, so Run is
// idempotent but not cheap — cache enriched chunks if re-running.
type Pipeline struct {
	extractors []Extractor
	logger     *slog.Logger
	tracer     quarry.Tracer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets a structured logger for pipeline events.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithPipelineTracer sets a span tracer for pipeline runs.
func WithPipelineTracer(t quarry.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// NewPipeline creates a Pipeline over the given extractors, applied in
// the given order. An empty extractor list yields an identity pipeline.
func NewPipeline(extractors []Extractor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{extractors: extractors}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = nopLogger
	}
	return p
}

// Run enriches chunks in place and returns them. Chunks are grouped by
// owning document for each extractor invocation so window-based
// extractors only ever see neighbors from the same document. Extractor
// failures are isolated per document group: the rest of the run
// proceeds and every failure is carried in the joined error.
func (p *Pipeline) Run(ctx context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error) {
	if p.tracer != nil {
		var span quarry.Span
		ctx, span = p.tracer.Start(ctx, "extract.pipeline",
			quarry.IntAttr("chunks", len(chunks)),
			quarry.IntAttr("extractors", len(p.extractors)))
		defer span.End()
	}

	groups := groupByDocument(chunks)
	var errs []error

	for _, ex := range p.extractors {
		p.checkRequiredKeys(ex, chunks)

		for _, idxs := range groups {
			batch := make([]quarry.Chunk, len(idxs))
			for j, i := range idxs {
				batch[j] = chunks[i]
			}

			maps, err := ex.Extract(ctx, batch)
			if err != nil {
				errs = append(errs, fmt.Errorf("extractor %s: document %s: %w",
					ex.Name(), batch[0].DocumentID, err))
				p.logger.Warn("extractor degraded",
					"extractor", ex.Name(),
					"document_id", batch[0].DocumentID,
					"err", err)
			}
			if len(maps) != len(idxs) {
				if err == nil {
					errs = append(errs, fmt.Errorf("extractor %s: returned %d maps for %d chunks",
						ex.Name(), len(maps), len(idxs)))
				}
				continue
			}
			for j, m := range maps {
				for k, v := range m {
					chunks[idxs[j]].SetMetadata(k, v)
				}
			}
		}
	}

	return chunks, errors.Join(errs...)
}

// checkRequiredKeys warns when an extractor declares upstream keys the
// chunks do not yet carry. Absence is not fatal — the extractor is
// expected to cope — but it usually means a mis-ordered pipeline.
func (p *Pipeline) checkRequiredKeys(ex Extractor, chunks []quarry.Chunk) {
	kr, ok := ex.(KeyRequirer)
	if !ok || len(chunks) == 0 {
		return
	}
	for _, key := range kr.RequiredKeys() {
		if _, present := chunks[0].Metadata[key]; !present {
			p.logger.Warn("extractor required key missing, check extractor order",
				"extractor", ex.Name(), "key", key)
		}
	}
}

// groupByDocument returns chunk indices grouped by DocumentID, both
// groups and members in first-encounter order.
func groupByDocument(chunks []quarry.Chunk) [][]int {
	var groups [][]int
	pos := make(map[string]int)
	for i, c := range chunks {
		g, ok := pos[c.DocumentID]
		if !ok {
			g = len(groups)
			pos[c.DocumentID] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
