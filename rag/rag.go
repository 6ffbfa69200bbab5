// Package rag wires the core pieces — chunker, extraction pipeline,
// store, and sub-question engine — into the two end-to-end entry
// points: ExtractAndIndex and Ask.
package rag

import (
	"context"
	"log/slog"

	quarry "github.com/davrk/quarry"
	"github.com/davrk/quarry/extract"
	"github.com/davrk/quarry/ingest"
	"github.com/davrk/quarry/subq"
	"github.com/davrk/quarry/tools/knowledge"
)

// IndexConfig configures ExtractAndIndex.
type IndexConfig struct {
	// Store receives the enriched chunks. Required.
	Store quarry.Store
	// Provider backs extraction prompts and the returned tool's
	// answers. Required; wrap with quarry.WithRetry for transient
	// failure handling.
	Provider quarry.Provider
	// ToolName and ToolDescription label the returned retrieval tool.
	// The description is what the sub-question generator routes on.
	ToolName        string
	ToolDescription string
	// Extractors run in order over every document's chunks. When nil,
	// a title extractor and a questions extractor are used.
	Extractors []extract.Extractor
	// Chunker overrides the default 512/128-token chunker.
	Chunker *ingest.Chunker
	// TopK bounds how many chunks one tool answer draws on.
	TopK   int
	Logger *slog.Logger
	Tracer quarry.Tracer
}

// ExtractAndIndex chunks the documents, enriches the chunks with
// model-generated metadata, indexes them into cfg.Store, and returns
// the corpus wrapped as a retrieval Tool.
//
// Enrichment failures degrade rather than abort: affected documents
// are indexed with whatever metadata was applied and the failures come
// back in the returned error alongside a usable Tool. Only a nil Tool
// means nothing was indexed.
func ExtractAndIndex(ctx context.Context, cfg IndexConfig, docs ...quarry.Document) (quarry.Tool, error) {
	if cfg.Store == nil {
		return nil, &quarry.ErrConfig{Field: "store", Reason: "required"}
	}
	if cfg.Provider == nil {
		return nil, &quarry.ErrConfig{Field: "provider", Reason: "required"}
	}
	if cfg.ToolName == "" {
		return nil, &quarry.ErrConfig{Field: "tool_name", Reason: "required"}
	}

	extractors := cfg.Extractors
	if extractors == nil {
		title, err := extract.NewTitleExtractor(cfg.Provider)
		if err != nil {
			return nil, err
		}
		questions, err := extract.NewQuestionsExtractor(cfg.Provider)
		if err != nil {
			return nil, err
		}
		extractors = []extract.Extractor{title, questions}
	}

	var pipeOpts []extract.PipelineOption
	if cfg.Logger != nil {
		pipeOpts = append(pipeOpts, extract.WithPipelineLogger(cfg.Logger))
	}
	if cfg.Tracer != nil {
		pipeOpts = append(pipeOpts, extract.WithPipelineTracer(cfg.Tracer))
	}
	pipeline := extract.NewPipeline(extractors, pipeOpts...)

	ingOpts := []ingest.Option{ingest.WithEnricher(pipeline)}
	if cfg.Chunker != nil {
		ingOpts = append(ingOpts, ingest.WithChunker(cfg.Chunker))
	}
	if cfg.Logger != nil {
		ingOpts = append(ingOpts, ingest.WithLogger(cfg.Logger))
	}
	if cfg.Tracer != nil {
		ingOpts = append(ingOpts, ingest.WithTracer(cfg.Tracer))
	}
	ingestor := ingest.NewIngestor(cfg.Store, ingOpts...)

	results, err := ingestor.Ingest(ctx, docs...)
	if len(results) == 0 && err != nil {
		return nil, err
	}

	var toolOpts []knowledge.Option
	if cfg.TopK > 0 {
		toolOpts = append(toolOpts, knowledge.WithTopK(cfg.TopK))
	}
	return knowledge.New(cfg.ToolName, cfg.ToolDescription, cfg.Store, cfg.Provider, toolOpts...), err
}

// Ask decomposes query across the given tools, dispatches the
// sub-questions concurrently, and synthesizes one final answer. The
// Result carries the full sub-question trace.
func Ask(ctx context.Context, provider quarry.Provider, query string, tools ...quarry.Tool) (quarry.Result, error) {
	set, err := quarry.NewToolSet(tools...)
	if err != nil {
		return quarry.Result{}, err
	}
	return subq.NewEngine(provider).Ask(ctx, query, set)
}
