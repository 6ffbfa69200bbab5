package extract

import (
	"context"
	"errors"
	"testing"

	quarry "github.com/davrk/quarry"
)

// stubExtractor returns fixed metadata for every chunk and records the
// document batches it was invoked with.
type stubExtractor struct {
	name     string
	meta     map[string]string
	failDoc  string
	required []string
	batches  [][]string
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) RequiredKeys() []string { return s.required }

func (s *stubExtractor) Extract(_ context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	var ids []string
	for _, c := range chunks {
		ids = append(ids, c.DocumentID)
	}
	s.batches = append(s.batches, ids)

	if len(chunks) > 0 && chunks[0].DocumentID == s.failDoc {
		return make([]map[string]string, len(chunks)), errors.New("extractor down")
	}
	maps := make([]map[string]string, len(chunks))
	for i := range maps {
		maps[i] = map[string]string{}
		for k, v := range s.meta {
			maps[i][k] = v
		}
	}
	return maps, nil
}

func TestPipelineMergeAndOverride(t *testing.T) {
	first := &stubExtractor{name: "first", meta: map[string]string{"shared": "old", "only_first": "1"}}
	second := &stubExtractor{name: "second", meta: map[string]string{"shared": "new"}}
	p := NewPipeline([]Extractor{first, second})

	chunks := chunksOf("doc-1", "a", "b")
	out, err := p.Run(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, c := range out {
		if c.Metadata["shared"] != "new" {
			t.Errorf("chunk %d shared = %q, want later extractor to win", i, c.Metadata["shared"])
		}
		if c.Metadata["only_first"] != "1" {
			t.Errorf("chunk %d lost only_first", i)
		}
	}
}

func TestPipelineGroupsByDocument(t *testing.T) {
	ex := &stubExtractor{name: "probe", meta: map[string]string{}}
	p := NewPipeline([]Extractor{ex})

	chunks := append(chunksOf("doc-a", "a1", "a2"), chunksOf("doc-b", "b1")...)
	// Interleave to prove grouping is by ID, not adjacency.
	chunks = append(chunks, chunksOf("doc-a", "a3")...)

	if _, err := p.Run(context.Background(), chunks); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(ex.batches) != 2 {
		t.Fatalf("batches = %d, want one per document", len(ex.batches))
	}
	for _, batch := range ex.batches {
		for _, id := range batch {
			if id != batch[0] {
				t.Errorf("mixed-document batch: %v", batch)
			}
		}
	}
	if len(ex.batches[0]) != 3 || ex.batches[0][0] != "doc-a" {
		t.Errorf("first batch = %v, want all three doc-a chunks", ex.batches[0])
	}
}

func TestPipelineDocumentFailureIsolated(t *testing.T) {
	ex := &stubExtractor{name: "flaky", meta: map[string]string{"k": "v"}, failDoc: "doc-a"}
	p := NewPipeline([]Extractor{ex})

	chunks := append(chunksOf("doc-a", "a1"), chunksOf("doc-b", "b1")...)
	out, err := p.Run(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected the failed document's error to surface")
	}
	if _, ok := out[0].Metadata["k"]; ok {
		t.Error("failed document should not gain metadata")
	}
	if out[1].Metadata["k"] != "v" {
		t.Error("healthy document lost its metadata")
	}
}

func TestPipelineMapCountMismatch(t *testing.T) {
	p := NewPipeline([]Extractor{shortExtractor{}})
	_, err := p.Run(context.Background(), chunksOf("doc-1", "a", "b"))
	if err == nil {
		t.Fatal("expected error for map/chunk count mismatch")
	}
}

// shortExtractor returns fewer maps than chunks.
type shortExtractor struct{}

func (shortExtractor) Name() string { return "short" }

func (shortExtractor) Extract(_ context.Context, chunks []quarry.Chunk) ([]map[string]string, error) {
	return make([]map[string]string, len(chunks)-1), nil
}

func TestPipelineEmptyIsIdentity(t *testing.T) {
	p := NewPipeline(nil)
	chunks := chunksOf("doc-1", "a")
	out, err := p.Run(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out) != 1 || out[0].Content != "a" {
		t.Errorf("out = %+v", out)
	}
}
