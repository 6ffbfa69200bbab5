package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	quarry "github.com/davrk/quarry"
)

// htmlReader extracts the readable article text from an HTML page.
type htmlReader struct{}

func (htmlReader) Read(content []byte) ([]quarry.Segment, error) {
	article, err := readability.FromReader(bytes.NewReader(content), &url.URL{Scheme: "file"})
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, nil
	}
	seg := quarry.Segment{Text: text}
	if article.Title != "" {
		seg.Metadata = map[string]string{"title": article.Title}
	}
	return []quarry.Segment{seg}, nil
}
