package extract

import (
	"context"
	"errors"
	"fmt"

	quarry "github.com/davrk/quarry"
)

const defaultSummaryPrompt = `Here is the content of a document section:
%s

Summarize the key topics and entities of the section in two or three sentences. Answer with the summary only.

Summary:`

// SummaryExtractor produces a short summary per chunk under
// section_summary, and mirrors each chunk's summary onto its successor
// as prev_section_summary so a chunk carries context about what came
// before it.
type SummaryExtractor struct {
	provider    quarry.Provider
	workers     int
	maxTokens   int
	prompt      string
	prevSummary bool
}

var _ Extractor = (*SummaryExtractor)(nil)

// NewSummaryExtractor creates a SummaryExtractor. Fails with
// *quarry.ErrConfig when the output budget is not positive.
func NewSummaryExtractor(p quarry.Provider, opts ...Option) (*SummaryExtractor, error) {
	c := buildConfig(opts)
	if c.maxTokens < 1 {
		return nil, &quarry.ErrConfig{Field: "max_tokens", Reason: "must be at least 1"}
	}
	prompt := c.prompt
	if prompt == "" {
		prompt = defaultSummaryPrompt
	}
	return &SummaryExtractor{
		provider:    p,
		workers:     c.workers,
		maxTokens:   c.maxTokens,
		prompt:      prompt,
		prevSummary: !c.noPrevSummary,
	}, nil
}

func (e *SummaryExtractor) Name() string { return "summary" }

// Extract summarizes every chunk concurrently, then assigns each
// chunk's summary to its successor in a second, sequential pass.
func (e *SummaryExtractor) Extract(ctx context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	maps := make([]map[string]string, len(chunks))
	for i := range maps {
		maps[i] = map[string]string{}
	}
	summaries := make([]string, len(chunks))

	errs := forEach(ctx, len(chunks), e.workers, func(i int) error {
		s, err := completeParsed(ctx, e.provider, e.Name(),
			fmt.Sprintf(e.prompt, chunks[i].Content), e.maxTokens, parseNonEmpty)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, err)
		}
		summaries[i] = s
		return nil
	})

	for i, s := range summaries {
		if s == "" {
			continue
		}
		maps[i][KeySectionSummary] = s
		if e.prevSummary && i+1 < len(chunks) {
			maps[i+1][KeyPrevSectionSummary] = s
		}
	}

	return maps, errors.Join(errs...)
}
