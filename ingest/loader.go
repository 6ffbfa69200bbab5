package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	quarry "github.com/davrk/quarry"
)

// Loader converts a raw source (a file path, a blob) into documents.
// Format support is the loader's concern; the core only consumes the
// resulting documents.
type Loader interface {
	Load(source string) ([]quarry.Document, error)
}

// FileLoader loads documents from local files, picking a format reader
// from the file extension. Unknown extensions are read as plain text.
type FileLoader struct {
	readers map[string]fileReader
}

// fileReader turns file bytes into ordered segments.
type fileReader interface {
	Read(content []byte) ([]quarry.Segment, error)
}

// NewFileLoader creates a FileLoader with readers for txt, md, html,
// and pdf files.
func NewFileLoader() *FileLoader {
	return &FileLoader{
		readers: map[string]fileReader{
			"txt":      plainTextReader{},
			"md":       markdownReader{},
			"markdown": markdownReader{},
			"html":     htmlReader{},
			"htm":      htmlReader{},
			"pdf":      pdfReader{},
		},
	}
}

// Load reads one file into a single Document whose segments carry
// file_name metadata (and page_label for paginated formats).
func (l *FileLoader) Load(source string) ([]quarry.Document, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(source)), ".")
	reader, ok := l.readers[ext]
	if !ok {
		reader = plainTextReader{}
	}

	segments, err := reader.Read(content)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	name := filepath.Base(source)
	for i := range segments {
		if segments[i].Metadata == nil {
			segments[i].Metadata = map[string]string{}
		}
		segments[i].Metadata["file_name"] = name
	}

	return []quarry.Document{{
		ID:        quarry.NewID(),
		Title:     name,
		Source:    source,
		Segments:  segments,
		CreatedAt: quarry.NowUnix(),
	}}, nil
}

// plainTextReader returns the whole file as one segment.
type plainTextReader struct{}

func (plainTextReader) Read(content []byte) ([]quarry.Segment, error) {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, nil
	}
	return []quarry.Segment{{Text: text}}, nil
}
