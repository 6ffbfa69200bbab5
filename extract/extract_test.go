package extract

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	quarry "github.com/davrk/quarry"
)

// scriptProvider answers prompts via fn and records every prompt.
type scriptProvider struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Complete(_ context.Context, req quarry.CompletionRequest) (quarry.CompletionResponse, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, req.Prompt)
	p.mu.Unlock()
	text, err := p.fn(req.Prompt)
	if err != nil {
		return quarry.CompletionResponse{}, err
	}
	return quarry.CompletionResponse{Text: text}, nil
}

func (p *scriptProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func chunksOf(docID string, contents ...string) []quarry.Chunk {
	out := make([]quarry.Chunk, len(contents))
	for i, c := range contents {
		out[i] = quarry.Chunk{ID: quarry.NewID(), DocumentID: docID, Content: c, ChunkIndex: i}
	}
	return out
}

func TestCompleteParsedCorrectiveRetry(t *testing.T) {
	calls := 0
	p := &scriptProvider{fn: func(prompt string) (string, error) {
		calls++
		if calls == 1 {
			return "   ", nil // fails parseTitle
		}
		if !strings.Contains(prompt, "could not be used") {
			t.Errorf("corrective prompt missing failure context: %q", prompt)
		}
		return "Recovered Title", nil
	}}

	out, err := completeParsed(context.Background(), p, "title", "prompt", 64, parseTitle)
	if err != nil {
		t.Fatalf("completeParsed returned error: %v", err)
	}
	if out != "Recovered Title" {
		t.Errorf("out = %q, want Recovered Title", out)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCompleteParsedGivesUpAfterRetry(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) { return "", nil }}

	_, err := completeParsed(context.Background(), p, "title", "prompt", 64, parseTitle)
	var malformed *quarry.ErrMalformedExtraction
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *quarry.ErrMalformedExtraction, got %v", err)
	}
	if malformed.Extractor != "title" {
		t.Errorf("Extractor = %q, want title", malformed.Extractor)
	}
	if p.callCount() != 2 {
		t.Errorf("calls = %d, want 2", p.callCount())
	}
}

func TestCompleteParsedModelErrorPassthrough(t *testing.T) {
	wantErr := &quarry.ErrModel{Provider: "script", Status: 500, Message: "boom"}
	p := &scriptProvider{fn: func(string) (string, error) { return "", wantErr }}

	_, err := completeParsed(context.Background(), p, "title", "prompt", 64, parseTitle)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected model error passthrough, got %v", err)
	}
	if p.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (no corrective retry on model errors)", p.callCount())
	}
}

func TestTitleExtractorWindows(t *testing.T) {
	n := 0
	p := &scriptProvider{fn: func(string) (string, error) {
		n++
		return "Title " + string(rune('A'-1+n)), nil
	}}

	// Single worker keeps window ordering deterministic.
	e, err := NewTitleExtractor(p, WithWindow(3), WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}

	chunks := chunksOf("doc-1", "c0", "c1", "c2", "c3", "c4", "c5", "c6")
	maps, err := e.Extract(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if p.callCount() != 3 {
		t.Fatalf("calls = %d, want 3 (one per window)", p.callCount())
	}
	if len(maps) != len(chunks) {
		t.Fatalf("len(maps) = %d, want %d", len(maps), len(chunks))
	}

	// All chunks within one window share the same title.
	for i := 0; i < 3; i++ {
		if maps[i][KeyDocumentTitle] != "Title A" {
			t.Errorf("chunk %d title = %q, want Title A", i, maps[i][KeyDocumentTitle])
		}
	}
	for i := 3; i < 6; i++ {
		if maps[i][KeyDocumentTitle] != "Title B" {
			t.Errorf("chunk %d title = %q, want Title B", i, maps[i][KeyDocumentTitle])
		}
	}
	if maps[6][KeyDocumentTitle] != "Title C" {
		t.Errorf("chunk 6 title = %q, want Title C", maps[6][KeyDocumentTitle])
	}
}

func TestTitleExtractorWindowFailureIsolated(t *testing.T) {
	p := &scriptProvider{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "poison") {
			return "", &quarry.ErrModel{Provider: "script", Status: 500, Message: "boom"}
		}
		return "Fine Title", nil
	}}

	e, err := NewTitleExtractor(p, WithWindow(2), WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}

	chunks := chunksOf("doc-1", "good one", "good two", "poison", "good three")
	maps, err := e.Extract(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected the poisoned window's error to surface")
	}
	if maps[0][KeyDocumentTitle] != "Fine Title" || maps[1][KeyDocumentTitle] != "Fine Title" {
		t.Errorf("healthy window lost its title: %v, %v", maps[0], maps[1])
	}
	if _, ok := maps[2][KeyDocumentTitle]; ok {
		t.Error("failed window should carry no title")
	}
}

func TestNewTitleExtractorBadWindow(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) { return "t", nil }}
	_, err := NewTitleExtractor(p, WithWindow(0))
	var cfgErr *quarry.ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *quarry.ErrConfig, got %v", err)
	}
}

func TestParseTitle(t *testing.T) {
	cases := []struct {
		raw, want string
		wantErr   bool
	}{
		{raw: "Employee Handbook", want: "Employee Handbook"},
		{raw: `"Quoted Title"`, want: "Quoted Title"},
		{raw: "Title: Prefixed", want: "Prefixed"},
		{raw: "First line\nsecond line", want: "First line"},
		{raw: "   ", wantErr: true},
		{raw: `""`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseTitle(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTitle(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTitle(%q) error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseTitle(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestQuestionsExtractor(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) {
		return "What is the refund window?\nWho approves expenses?", nil
	}}
	e, err := NewQuestionsExtractor(p, WithQuestionCount(2))
	if err != nil {
		t.Fatal(err)
	}

	chunks := chunksOf("doc-1", "refund policy text", "expense policy text")
	chunks[0].SetMetadata(KeyDocumentTitle, "Finance Handbook")

	maps, err := e.Extract(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if p.callCount() != 2 {
		t.Errorf("calls = %d, want one per chunk", p.callCount())
	}
	for i := range maps {
		if !strings.Contains(maps[i][KeyQuestionsAnswered], "?") {
			t.Errorf("chunk %d questions = %q", i, maps[i][KeyQuestionsAnswered])
		}
	}

	// The prompt renders existing metadata so questions can use it.
	found := false
	for _, prompt := range p.prompts {
		if strings.Contains(prompt, "Finance Handbook") {
			found = true
		}
	}
	if !found {
		t.Error("no prompt carried the chunk's document_title metadata")
	}
}

func TestSummaryExtractorPrevAssignment(t *testing.T) {
	p := &scriptProvider{fn: func(prompt string) (string, error) {
		for _, word := range []string{"alpha", "beta", "gamma"} {
			if strings.Contains(prompt, word) {
				return "summary of " + word, nil
			}
		}
		return "", errors.New("unknown chunk")
	}}

	e, err := NewSummaryExtractor(p)
	if err != nil {
		t.Fatal(err)
	}
	chunks := chunksOf("doc-1", "alpha text", "beta text", "gamma text")

	maps, err := e.Extract(context.Background(), chunks)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if maps[0][KeySectionSummary] != "summary of alpha" {
		t.Errorf("chunk 0 summary = %q", maps[0][KeySectionSummary])
	}
	if maps[1][KeyPrevSectionSummary] != "summary of alpha" {
		t.Errorf("chunk 1 prev summary = %q, want chunk 0's summary", maps[1][KeyPrevSectionSummary])
	}
	if maps[2][KeyPrevSectionSummary] != "summary of beta" {
		t.Errorf("chunk 2 prev summary = %q, want chunk 1's summary", maps[2][KeyPrevSectionSummary])
	}
	if _, ok := maps[0][KeyPrevSectionSummary]; ok {
		t.Error("first chunk should have no prev summary")
	}
}

func TestSummaryExtractorWithoutPrev(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) { return "s", nil }}
	e, err := NewSummaryExtractor(p, WithoutPrevSummary())
	if err != nil {
		t.Fatal(err)
	}
	chunks := chunksOf("doc-1", "alpha", "beta")

	maps, err := e.Extract(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := maps[1][KeyPrevSectionSummary]; ok {
		t.Error("prev summary should be disabled")
	}
}

func TestNewSummaryExtractorBadBudget(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) { return "s", nil }}
	_, err := NewSummaryExtractor(p, WithMaxTokens(0))
	var cfgErr *quarry.ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *quarry.ErrConfig, got %v", err)
	}
}

func TestKeywordExtractor(t *testing.T) {
	p := &scriptProvider{fn: func(string) (string, error) {
		return "Keywords:\n- payroll\n- benefits, onboarding", nil
	}}
	e, err := NewKeywordExtractor(p)
	if err != nil {
		t.Fatal(err)
	}
	maps, err := e.Extract(context.Background(), chunksOf("doc-1", "hr text"))
	if err != nil {
		t.Fatal(err)
	}
	if got := maps[0][KeyExcerptKeywords]; got != "payroll, benefits, onboarding" {
		t.Errorf("keywords = %q, want normalized list", got)
	}
}

func TestParseKeywords(t *testing.T) {
	cases := []struct {
		raw, want string
		wantErr   bool
	}{
		{raw: "a, b, c", want: "a, b, c"},
		{raw: "Keywords: a, b", want: "a, b"},
		{raw: "- a\n- b", want: "a, b"},
		{raw: "a,\n b,", want: "a, b"},
		{raw: "  ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseKeywords(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseKeywords(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseKeywords(%q) error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseKeywords(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
