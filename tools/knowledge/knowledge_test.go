package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	quarry "github.com/davrk/quarry"
)

// fakeStore serves canned search results.
type fakeStore struct {
	results []quarry.ScoredChunk
	err     error
	gotTopK int
}

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) StoreDocument(context.Context, quarry.Document, []quarry.Chunk) error {
	return nil
}

func (s *fakeStore) SearchChunks(_ context.Context, _ string, topK int) ([]quarry.ScoredChunk, error) {
	s.gotTopK = topK
	return s.results, s.err
}

// echoProvider returns a fixed answer and records the prompt.
type echoProvider struct {
	answer string
	prompt string
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Complete(_ context.Context, req quarry.CompletionRequest) (quarry.CompletionResponse, error) {
	p.prompt = req.Prompt
	return quarry.CompletionResponse{Text: p.answer}, nil
}

func scored(content string, meta map[string]string) quarry.ScoredChunk {
	return quarry.ScoredChunk{Chunk: quarry.Chunk{ID: quarry.NewID(), Content: content, Metadata: meta}, Score: 0.9}
}

func TestAnswer(t *testing.T) {
	store := &fakeStore{results: []quarry.ScoredChunk{
		scored("PTO is 25 days per year.", map[string]string{"document_title": "HR Handbook"}),
		scored("Unused PTO rolls over.", nil),
	}}
	p := &echoProvider{answer: "  25 days, and it rolls over.  "}
	tool := New("hr", "HR policies", store, p, WithTopK(3))

	got, err := tool.Answer(context.Background(), "How much PTO?")
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	if got != "25 days, and it rolls over." {
		t.Errorf("Answer = %q, want trimmed model reply", got)
	}
	if store.gotTopK != 3 {
		t.Errorf("topK = %d, want 3", store.gotTopK)
	}
	// Excerpts are rendered with their metadata, separated.
	if !strings.Contains(p.prompt, "document_title: HR Handbook") {
		t.Errorf("prompt missing rendered metadata: %q", p.prompt)
	}
	if !strings.Contains(p.prompt, "\n---\n") {
		t.Errorf("prompt missing excerpt separator: %q", p.prompt)
	}
	if !strings.Contains(p.prompt, "How much PTO?") {
		t.Errorf("prompt missing query: %q", p.prompt)
	}
}

func TestAnswerEmptyCorpus(t *testing.T) {
	tool := New("hr", "HR policies", &fakeStore{}, &echoProvider{answer: "never"})

	got, err := tool.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Answer returned error: %v — an empty corpus is not a failure", err)
	}
	if !strings.Contains(got, "nothing relevant") {
		t.Errorf("Answer = %q, want the nothing-relevant message", got)
	}
}

func TestAnswerStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("index locked")}
	tool := New("hr", "HR policies", store, &echoProvider{answer: "never"})

	_, err := tool.Answer(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "index locked") {
		t.Fatalf("expected store error, got %v", err)
	}
}
