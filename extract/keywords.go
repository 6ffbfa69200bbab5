package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	quarry "github.com/davrk/quarry"
)

const defaultKeywordsPrompt = `Here is an excerpt from a larger document:
%s

Give %d unique keywords for this excerpt. Prefer specific entities and terms over generic words. Answer with a comma-separated list of keywords only.

Keywords:`

// KeywordExtractor derives a comma-delimited keyword list per chunk
// under the excerpt_keywords key.
type KeywordExtractor struct {
	provider  quarry.Provider
	count     int
	workers   int
	maxTokens int
	prompt    string
}

var _ Extractor = (*KeywordExtractor)(nil)

// NewKeywordExtractor creates a KeywordExtractor producing count
// keywords per chunk. Fails with *quarry.ErrConfig when the count is
// not positive.
func NewKeywordExtractor(p quarry.Provider, opts ...Option) (*KeywordExtractor, error) {
	c := buildConfig(opts)
	if c.keywordCount < 1 {
		return nil, &quarry.ErrConfig{Field: "keyword_count", Reason: "must be at least 1"}
	}
	prompt := c.prompt
	if prompt == "" {
		prompt = defaultKeywordsPrompt
	}
	return &KeywordExtractor{
		provider:  p,
		count:     c.keywordCount,
		workers:   c.workers,
		maxTokens: c.maxTokens,
		prompt:    prompt,
	}, nil
}

func (e *KeywordExtractor) Name() string { return "keywords" }

// Extract runs one model call per chunk on a bounded worker pool.
func (e *KeywordExtractor) Extract(ctx context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	maps := make([]map[string]string, len(chunks))
	for i := range maps {
		maps[i] = map[string]string{}
	}

	errs := forEach(ctx, len(chunks), e.workers, func(i int) error {
		keywords, err := completeParsed(ctx, e.provider, e.Name(),
			fmt.Sprintf(e.prompt, chunks[i].Content, e.count),
			e.maxTokens, parseKeywords)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", chunks[i].ID, err)
		}
		maps[i][KeyExcerptKeywords] = keywords
		return nil
	})

	return maps, errors.Join(errs...)
}

// parseKeywords normalizes a reply into "a, b, c" form. Models often
// prefix a label or bullet the list; both are stripped.
func parseKeywords(raw string) (string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Keywords:"))
	var keywords []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		kw := strings.TrimSpace(strings.TrimLeft(part, "-*• \t"))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return "", errors.New("no keywords found")
	}
	return strings.Join(keywords, ", "), nil
}
