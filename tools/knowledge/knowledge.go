// Package knowledge wraps a quarry.Store and a model provider as a
// named, described retrieval Tool: one call answers one query from the
// indexed corpus.
package knowledge

import (
	"context"
	"fmt"
	"strings"

	quarry "github.com/davrk/quarry"
)

const answerPrompt = `Answer the question using only the excerpts below. Quote specific figures when present. If the excerpts do not contain the answer, say so.

Excerpts:
%s

Question: %s

Answer:`

// Tool answers single queries against an indexed corpus by retrieving
// the top matching chunks and asking the model to answer from them.
type Tool struct {
	name        string
	description string
	store       quarry.Store
	provider    quarry.Provider
	topK        int
	maxTokens   int
}

var _ quarry.Tool = (*Tool)(nil)

// Option configures a knowledge Tool.
type Option func(*Tool)

// WithTopK sets how many chunks one answer draws on (default 5).
func WithTopK(n int) Option {
	return func(t *Tool) { t.topK = n }
}

// WithMaxTokens caps the model output per answer (default 512).
func WithMaxTokens(n int) Option {
	return func(t *Tool) { t.maxTokens = n }
}

// New creates a Tool over store, answering with provider. The name
// must be unique within one ask; the description is what the
// sub-question generator routes on, so describe the corpus, not the
// mechanism.
func New(name, description string, store quarry.Store, provider quarry.Provider, opts ...Option) *Tool {
	t := &Tool{
		name:        name,
		description: description,
		store:       store,
		provider:    provider,
		topK:        5,
		maxTokens:   512,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

// Answer retrieves the chunks most relevant to query and asks the
// model to answer from them alone.
func (t *Tool) Answer(ctx context.Context, query string) (string, error) {
	chunks, err := t.store.SearchChunks(ctx, query, t.topK)
	if err != nil {
		return "", fmt.Errorf("%s: retrieve: %w", t.name, err)
	}
	if len(chunks) == 0 {
		return fmt.Sprintf("The %s corpus contains nothing relevant to: %s", t.name, query), nil
	}

	var excerpts strings.Builder
	for i, c := range chunks {
		if i > 0 {
			excerpts.WriteString("\n---\n")
		}
		excerpts.WriteString(c.Render(quarry.ModeLLM))
	}

	resp, err := t.provider.Complete(ctx, quarry.CompletionRequest{
		Prompt:    fmt.Sprintf(answerPrompt, excerpts.String(), query),
		MaxTokens: t.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: answer: %w", t.name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
