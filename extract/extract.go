// Package extract derives metadata for chunks through model prompts.
// An ordered list of extractors runs under a Pipeline, each merging
// its per-chunk key-value output into the chunk's metadata.
package extract

import (
	"context"
	"log/slog"
	"strings"

	quarry "github.com/davrk/quarry"
)

// Metadata keys written by the built-in extractors.
const (
	KeyDocumentTitle      = "document_title"
	KeyQuestionsAnswered  = "questions_this_excerpt_can_answer"
	KeySectionSummary     = "section_summary"
	KeyPrevSectionSummary = "prev_section_summary"
	KeyExcerptKeywords    = "excerpt_keywords"
)

// Extractor derives one metadata mapping per input chunk, same order.
// Implementations are stateless across calls apart from their
// configuration; all chunks passed to one call belong to the same
// document. A partially failed call still returns len(chunks) maps
// (failed positions empty) alongside the joined error.
type Extractor interface {
	// Name identifies the extractor in logs and error context.
	Name() string
	// Extract returns one metadata map per chunk, same order.
	Extract(ctx context.Context, chunks []quarry.Chunk) ([]map[string]string, error)
}

// KeyRequirer is an optional Extractor capability declaring metadata
// keys that must already be present, i.e. written by an earlier
// extractor in the same pipeline. The pipeline warns when a required
// key is absent.
type KeyRequirer interface {
	RequiredKeys() []string
}

// Option configures a built-in extractor.
type Option func(*config)

type config struct {
	window        int
	workers       int
	questionCount int
	keywordCount  int
	maxTokens     int
	prompt        string
	noPrevSummary bool
	logger        *slog.Logger
}

func defaultConfig() config {
	return config{window: 5, workers: 4, questionCount: 5, keywordCount: 5, maxTokens: 256}
}

// WithWindow sets how many neighboring chunks feed one title prompt
// (default 5).
func WithWindow(n int) Option {
	return func(c *config) { c.window = n }
}

// WithWorkers bounds the number of concurrent model calls one
// extractor makes across chunks (default 4).
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}

// WithQuestionCount sets how many questions QuestionsExtractor asks
// the model to produce per chunk (default 5).
func WithQuestionCount(n int) Option {
	return func(c *config) { c.questionCount = n }
}

// WithKeywordCount sets how many keywords KeywordExtractor asks for
// per chunk (default 5).
func WithKeywordCount(n int) Option {
	return func(c *config) { c.keywordCount = n }
}

// WithMaxTokens caps the model output per extraction call (default 256).
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithPromptTemplate overrides the extractor's prompt template. The
// template's verbs must match the extractor's defaults.
func WithPromptTemplate(t string) Option {
	return func(c *config) { c.prompt = t }
}

// WithoutPrevSummary disables SummaryExtractor's prev_section_summary
// key; only section_summary is written.
func WithoutPrevSummary() Option {
	return func(c *config) { c.noPrevSummary = true }
}

// WithLogger sets a structured logger for extraction events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func buildConfig(opts []Option) config {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	if c.logger == nil {
		c.logger = nopLogger
	}
	return c
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// forEach runs fn(i) for i in [0, n) on a bounded worker pool and
// returns one error slot per index. Distinct indices are written by
// exactly one goroutine, so no locking is needed.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	if workers <= 0 {
		workers = 1
	}
	numWorkers := min(workers, n)
	work := make(chan int, n)
	done := make(chan struct{})

	for w := 0; w < numWorkers; w++ {
		go func() {
			for i := range work {
				if ctx.Err() != nil {
					errs[i] = ctx.Err()
					continue
				}
				errs[i] = fn(i)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	for w := 0; w < numWorkers; w++ {
		<-done
	}
	return errs
}

// completeParsed sends prompt and parses the reply. On a parse
// failure it retries once with a corrective prompt carrying the bad
// reply; a second failure surfaces *quarry.ErrMalformedExtraction
// with the raw text preserved. Model errors pass through untouched so
// the provider's retry wrapper owns transient-failure policy.
func completeParsed(ctx context.Context, p quarry.Provider, name, prompt string, maxTokens int, parse func(string) (string, error)) (string, error) {
	resp, err := p.Complete(ctx, quarry.CompletionRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	out, perr := parse(strings.TrimSpace(resp.Text))
	if perr == nil {
		return out, nil
	}

	corrective := prompt +
		"\n\nYour previous reply could not be used (" + perr.Error() + "):\n" +
		resp.Text +
		"\n\nReply again following the requested format exactly, with no preamble."
	resp, err = p.Complete(ctx, quarry.CompletionRequest{Prompt: corrective, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	out, perr = parse(strings.TrimSpace(resp.Text))
	if perr == nil {
		return out, nil
	}
	return "", &quarry.ErrMalformedExtraction{Extractor: name, Raw: resp.Text, Reason: perr.Error()}
}
