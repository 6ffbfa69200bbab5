package extract

import (
	"context"
	"errors"
	"fmt"

	quarry "github.com/davrk/quarry"
)

const defaultQuestionsPrompt = `Here is an excerpt from a larger document:
%s

Generate exactly %d questions that this excerpt can answer, which are unlikely to be answered elsewhere in the document. Prefer questions about specific figures, entities, and claims in the excerpt. Answer with the questions only, one per line.

Questions:`

// QuestionsExtractor asks the model, per chunk, for the questions the
// excerpt can answer and stores the model's output verbatim under the
// questions_this_excerpt_can_answer key. Indexing anticipated
// questions alongside the text lets question-shaped queries match the
// chunk directly.
type QuestionsExtractor struct {
	provider  quarry.Provider
	count     int
	workers   int
	maxTokens int
	prompt    string
}

var _ Extractor = (*QuestionsExtractor)(nil)

// NewQuestionsExtractor creates a QuestionsExtractor producing count
// questions per chunk. Fails with *quarry.ErrConfig when the count is
// not positive.
func NewQuestionsExtractor(p quarry.Provider, opts ...Option) (*QuestionsExtractor, error) {
	c := buildConfig(opts)
	if c.questionCount < 1 {
		return nil, &quarry.ErrConfig{Field: "question_count", Reason: "must be at least 1"}
	}
	prompt := c.prompt
	if prompt == "" {
		prompt = defaultQuestionsPrompt
	}
	return &QuestionsExtractor{
		provider:  p,
		count:     c.questionCount,
		workers:   c.workers,
		maxTokens: c.maxTokens,
		prompt:    prompt,
	}, nil
}

func (e *QuestionsExtractor) Name() string { return "questions" }

// Extract runs one model call per chunk on a bounded worker pool.
func (e *QuestionsExtractor) Extract(ctx context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	maps := make([]map[string]string, len(chunks))
	for i := range maps {
		maps[i] = map[string]string{}
	}

	errs := forEach(ctx, len(chunks), e.workers, func(i int) error {
		questions, err := completeParsed(ctx, e.provider, e.Name(),
			fmt.Sprintf(e.prompt, chunks[i].Render(quarry.ModeLLM), e.count),
			e.maxTokens, parseNonEmpty)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, err)
		}
		maps[i][KeyQuestionsAnswered] = questions
		return nil
	})

	return maps, errors.Join(errs...)
}

// parseNonEmpty accepts any non-empty reply verbatim.
func parseNonEmpty(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty response")
	}
	return raw, nil
}
