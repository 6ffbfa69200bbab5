package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	quarry "github.com/davrk/quarry"
)

// fakeStore records stored documents and optionally fails for one ID.
type fakeStore struct {
	stored map[string][]quarry.Chunk
	failID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{stored: make(map[string][]quarry.Chunk)}
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) StoreDocument(_ context.Context, doc quarry.Document, chunks []quarry.Chunk) error {
	if doc.ID == s.failID {
		return errors.New("disk full")
	}
	s.stored[doc.ID] = chunks
	return nil
}

func (s *fakeStore) SearchChunks(context.Context, string, int) ([]quarry.ScoredChunk, error) {
	return nil, nil
}

// enricherFunc adapts a function to the Enricher interface.
type enricherFunc func(ctx context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error)

func (f enricherFunc) Run(ctx context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error) {
	return f(ctx, chunks)
}

func doc(id, text string) quarry.Document {
	return quarry.Document{ID: id, Source: id + ".txt", Segments: []quarry.Segment{{Text: text}}}
}

func TestIngest(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store)

	results, err := ing.Ingest(context.Background(), doc("a", "alpha text"), doc("b", "beta text"))
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if len(store.stored["a"]) != 1 || len(store.stored["b"]) != 1 {
		t.Errorf("stored chunks = %d, %d; want 1 each", len(store.stored["a"]), len(store.stored["b"]))
	}
}

func TestIngestAppliesEnricher(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, WithEnricher(enricherFunc(
		func(_ context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error) {
			for i := range chunks {
				chunks[i].SetMetadata("document_title", "Alpha")
			}
			return chunks, nil
		})))

	_, err := ing.Ingest(context.Background(), doc("a", "alpha text"))
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if got := store.stored["a"][0].Metadata["document_title"]; got != "Alpha" {
		t.Errorf("stored metadata document_title = %q, want Alpha", got)
	}
}

func TestIngestEnrichmentFailureDegrades(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store, WithEnricher(enricherFunc(
		func(_ context.Context, chunks []quarry.Chunk) ([]quarry.Chunk, error) {
			return chunks, errors.New("model unavailable")
		})))

	results, err := ing.Ingest(context.Background(), doc("a", "alpha text"))
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected enrichment error to surface, got %v", err)
	}
	// The document is still indexed.
	if len(results) != 1 || results[0].DocumentID != "a" {
		t.Fatalf("results = %+v, want document a indexed", results)
	}
	if len(store.stored["a"]) == 0 {
		t.Error("chunks were not stored despite degradation contract")
	}
}

func TestIngestStoreFailureSkipsDocument(t *testing.T) {
	store := newFakeStore()
	store.failID = "a"
	ing := NewIngestor(store)

	results, err := ing.Ingest(context.Background(), doc("a", "alpha text"), doc("b", "beta text"))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "b" {
		t.Errorf("results = %+v, want only document b", results)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	store := newFakeStore()
	ing := NewIngestor(store)

	results, err := ing.Ingest(context.Background(), doc("a", "   "))
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none for an empty document", results)
	}
}
