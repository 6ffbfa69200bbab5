package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	quarry "github.com/davrk/quarry"
)

const defaultTitlePrompt = `Context:
%s

Give a single title that describes the document these excerpts were drawn from. Capture the unique entities and themes shared by the excerpts. Answer with the title only, on one line, with no quotes and no preamble.

Title:`

// TitleExtractor derives a document title from windows of neighboring
// chunks. Every chunk in one window receives the identical title
// string under the document_title key, so retrieval can group
// excerpts by the document they describe.
type TitleExtractor struct {
	provider  quarry.Provider
	window    int
	workers   int
	maxTokens int
	prompt    string
}

var _ Extractor = (*TitleExtractor)(nil)

// NewTitleExtractor creates a TitleExtractor. Fails with
// *quarry.ErrConfig when the window is not positive.
func NewTitleExtractor(p quarry.Provider, opts ...Option) (*TitleExtractor, error) {
	c := buildConfig(opts)
	if c.window < 1 {
		return nil, &quarry.ErrConfig{Field: "window", Reason: "must be at least 1"}
	}
	prompt := c.prompt
	if prompt == "" {
		prompt = defaultTitlePrompt
	}
	return &TitleExtractor{
		provider:  p,
		window:    c.window,
		workers:   c.workers,
		maxTokens: c.maxTokens,
		prompt:    prompt,
	}, nil
}

func (e *TitleExtractor) Name() string { return "title" }

// Extract groups chunks into consecutive windows of the configured
// size and makes one model call per window. Window failures are
// isolated: the affected chunks get no title and the error is joined.
func (e *TitleExtractor) Extract(ctx context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	maps := make([]map[string]string, len(chunks))
	for i := range maps {
		maps[i] = map[string]string{}
	}
	if len(chunks) == 0 {
		return maps, nil
	}

	type span struct{ start, end int }
	var windows []span
	for start := 0; start < len(chunks); start += e.window {
		end := min(start+e.window, len(chunks))
		windows = append(windows, span{start, end})
	}

	errs := forEach(ctx, len(windows), e.workers, func(w int) error {
		win := windows[w]
		var b strings.Builder
		for i := win.start; i < win.end; i++ {
			if b.Len() > 0 {
				b.WriteString("\n---\n")
			}
			b.WriteString(chunks[i].Content)
		}

		title, err := completeParsed(ctx, e.provider, e.Name(),
			fmt.Sprintf(e.prompt, b.String()), e.maxTokens, parseTitle)
		if err != nil {
			return fmt.Errorf("window %d-%d: %w", win.start, win.end, err)
		}
		for i := win.start; i < win.end; i++ {
			maps[i][KeyDocumentTitle] = title
		}
		return nil
	})

	return maps, errors.Join(errs...)
}

// parseTitle normalizes a model reply into a single non-empty line.
func parseTitle(raw string) (string, error) {
	line := raw
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	line = strings.TrimPrefix(line, "Title:")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty title")
	}
	return line, nil
}
