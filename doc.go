// Package quarry turns raw documents into a metadata-enriched retrieval
// corpus and answers complex questions over it by sub-question
// decomposition.
//
// It provides modular, interface-driven building blocks: an ingestion
// pipeline (loaders and a token-budgeted chunker), pluggable metadata
// extractors that enrich chunks with model-generated titles, questions,
// summaries, and keywords, full-text stores, and a query engine that
// decomposes a question into per-tool sub-questions, answers them
// concurrently, and synthesizes a final answer.
//
// # Quick Start
//
//	provider := quarry.WithRetry(openaicompat.New(apiKey, model, baseURL))
//	store := sqlite.New("quarry.db")
//
//	docs, _ := ingest.NewFileLoader().Load("handbook.md")
//	tool, err := rag.ExtractAndIndex(ctx, rag.IndexConfig{
//		Store:           store,
//		Provider:        provider,
//		ToolName:        "handbook",
//		ToolDescription: "Answers questions about the employee handbook",
//	}, docs...)
//
//	result, err := rag.Ask(ctx, provider, "Compare the PTO and sick-leave policies", tool)
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [Provider] — LLM completion backend
//   - [Store] — chunk persistence with full-text search
//   - [Tool] — a queryable capability the engine can route sub-questions to
//   - [Tracer] — optional span-based instrumentation
//
// Subpackages supply the implementations: ingest (loaders, chunker,
// ingestor), extract (metadata extractors and the pipeline that runs
// them), subq (decomposition engine), store/sqlite and store/postgres,
// provider/openaicompat, tools/knowledge, observer (OpenTelemetry), and
// rag (end-to-end wiring).
package quarry
