// Binary quarry ingests local documents into a searchable, metadata-enriched
// index and answers questions over it by sub-question decomposition.
//
// Usage:
//
//	quarry ingest <file>...        chunk, enrich, and index documents
//	quarry ask "<question>"        decompose, retrieve, and synthesize
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	quarry "github.com/davrk/quarry"
	"github.com/davrk/quarry/extract"
	"github.com/davrk/quarry/ingest"
	"github.com/davrk/quarry/internal/config"
	"github.com/davrk/quarry/observer"
	"github.com/davrk/quarry/provider/openaicompat"
	"github.com/davrk/quarry/rag"
	"github.com/davrk/quarry/store/postgres"
	"github.com/davrk/quarry/store/sqlite"
	"github.com/davrk/quarry/tools/knowledge"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	ctx := context.Background()
	cfg := config.Load(os.Getenv("QUARRY_CONFIG"))

	if cfg.LLM.APIKey == "" {
		log.Fatal("missing API key: set QUARRY_LLM_API_KEY or llm.api_key in quarry.toml")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Provider with transient-failure retries.
	var provider quarry.Provider = openaicompat.New(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	provider = quarry.WithRetry(provider, quarry.RetryLogger(logger))

	// Observer (opt-in via config)
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init failed: %v", err)
		}
		defer shutdown(context.Background())
		provider = observer.WrapProvider(provider, cfg.LLM.Model, inst)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Fatalf("store init: %v", err)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(ctx, cfg, logger, provider, store, os.Args[2:])
	case "ask":
		runAsk(ctx, cfg, provider, store, inst, os.Args[2])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: quarry ingest <file>... | quarry ask \"<question>\"")
	os.Exit(2)
}

func openStore(ctx context.Context, cfg config.Config) (quarry.Store, error) {
	if cfg.Database.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	}
	return sqlite.New(cfg.Database.Path), nil
}

func runIngest(ctx context.Context, cfg config.Config, logger *slog.Logger, provider quarry.Provider, store quarry.Store, paths []string) {
	loader := ingest.NewFileLoader()

	var docs []quarry.Document
	for _, path := range paths {
		loaded, err := loader.Load(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
		docs = append(docs, loaded...)
	}

	chunker, err := ingest.NewChunker(
		ingest.WithChunkTokens(cfg.Extraction.ChunkTokens),
		ingest.WithOverlapTokens(cfg.Extraction.OverlapTokens),
	)
	if err != nil {
		log.Fatalf("chunker: %v", err)
	}

	extractors, err := buildExtractors(cfg, provider)
	if err != nil {
		log.Fatalf("extractors: %v", err)
	}

	tool, err := rag.ExtractAndIndex(ctx, rag.IndexConfig{
		Store:           store,
		Provider:        provider,
		ToolName:        "knowledge",
		ToolDescription: "Answers questions from the ingested document corpus",
		Extractors:      extractors,
		Chunker:         chunker,
		TopK:            cfg.Ask.TopK,
		Logger:          logger,
	}, docs...)
	if tool == nil {
		log.Fatalf("ingest failed: %v", err)
	}
	if err != nil {
		// Partial enrichment failures: documents were still indexed.
		logger.Warn("ingest degraded", "err", err)
	}
	fmt.Printf("indexed %d document(s)\n", len(docs))
}

func buildExtractors(cfg config.Config, provider quarry.Provider) ([]extract.Extractor, error) {
	shared := []extract.Option{
		extract.WithWorkers(cfg.Extraction.Workers),
		extract.WithWindow(cfg.Extraction.TitleWindow),
		extract.WithQuestionCount(cfg.Extraction.QuestionCount),
	}

	title, err := extract.NewTitleExtractor(provider, shared...)
	if err != nil {
		return nil, err
	}
	questions, err := extract.NewQuestionsExtractor(provider, shared...)
	if err != nil {
		return nil, err
	}
	extractors := []extract.Extractor{title, questions}

	if cfg.Extraction.Summaries {
		sum, err := extract.NewSummaryExtractor(provider, shared...)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, sum)
	}
	if cfg.Extraction.Keywords {
		kw, err := extract.NewKeywordExtractor(provider, shared...)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, kw)
	}
	return extractors, nil
}

func runAsk(ctx context.Context, cfg config.Config, provider quarry.Provider, store quarry.Store, inst *observer.Instruments, query string) {
	var tool quarry.Tool = knowledge.New("knowledge", "Answers questions from the ingested document corpus",
		store, provider, knowledge.WithTopK(cfg.Ask.TopK))
	if inst != nil {
		tool = observer.WrapTool(tool, inst)
	}

	result, err := rag.Ask(ctx, provider, query, tool)
	if err != nil {
		log.Fatalf("ask: %v", err)
	}

	for _, sq := range result.SubQuestions {
		fmt.Printf("[%s] %s\n", sq.Tool, sq.Question)
		if sq.Status == quarry.StatusFailed {
			fmt.Printf("  (failed: %s)\n", sq.Err)
			continue
		}
		fmt.Printf("  %s\n", sq.Answer)
	}
	fmt.Println()
	fmt.Println(result.Answer)
}
