package quarry

import (
	"sort"
	"strings"
)

// --- Domain types ---

// Segment is one raw text unit of a Document (a page, a section) with
// its own metadata such as file name or page label.
type Segment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Document is an ordered sequence of raw text segments. It is owned by
// the caller and read-only to the chunker.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Segments  []Segment `json:"segments"`
	CreatedAt int64     `json:"created_at"`
}

// Text returns the document's segments joined into one string.
func (d Document) Text() string {
	parts := make([]string, 0, len(d.Segments))
	for _, s := range d.Segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// MetadataMode selects which metadata keys a Chunk serializes when
// rendered for a given audience.
type MetadataMode int

const (
	// ModeNone renders content only, no metadata.
	ModeNone MetadataMode = iota
	// ModeLLM renders metadata destined for model context.
	ModeLLM
	// ModeHuman renders metadata destined for human display.
	ModeHuman
	// ModeAll renders every metadata key.
	ModeAll
)

// Chunk is a bounded span of document text with attached metadata —
// the unit of extraction and retrieval. Metadata keys are unique per
// chunk and values are always plain text. Extractors add keys in
// place; once a chunk is handed to a Store it must not be mutated.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	// Keys hidden from the respective rendering mode.
	ExcludedLLMKeys   []string `json:"excluded_llm_keys,omitempty"`
	ExcludedHumanKeys []string `json:"excluded_human_keys,omitempty"`
}

// SetMetadata stores key=value on the chunk, allocating the map on
// first use.
func (c *Chunk) SetMetadata(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// Render serializes the chunk for the given audience: visible metadata
// as "key: value" lines, a blank line, then the content.
func (c Chunk) Render(mode MetadataMode) string {
	if mode == ModeNone || len(c.Metadata) == 0 {
		return c.Content
	}

	excluded := map[string]bool{}
	switch mode {
	case ModeLLM:
		for _, k := range c.ExcludedLLMKeys {
			excluded[k] = true
		}
	case ModeHuman:
		for _, k := range c.ExcludedHumanKeys {
			excluded[k] = true
		}
	}

	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		if !excluded[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return c.Content
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(c.Metadata[k])
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(c.Content)
	return b.String()
}

// ScoredChunk is a Chunk with a search relevance score in [0, 1],
// higher is more relevant.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// --- Sub-question types ---

// SubQuestionStatus tracks a sub-question through dispatch.
type SubQuestionStatus string

const (
	StatusPending  SubQuestionStatus = "pending"
	StatusAnswered SubQuestionStatus = "answered"
	StatusFailed   SubQuestionStatus = "failed"
)

// SubQuestion is an atomic, tool-bound query produced by decomposing a
// complex user query. Answer stays empty until the bound tool responds.
type SubQuestion struct {
	ID       string            `json:"id"`
	QueryID  string            `json:"query_id"`
	Tool     string            `json:"tool"`
	Question string            `json:"question"`
	Answer   string            `json:"answer,omitempty"`
	Status   SubQuestionStatus `json:"status"`
	Err      string            `json:"error,omitempty"`
}

// ToolDescriptor names and describes a Tool for the sub-question
// generator. Names must be unique within one ask.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Result is the outcome of answering one query: the synthesized answer
// plus the full sub-question trace for observability.
type Result struct {
	QueryID      string        `json:"query_id"`
	Answer       string        `json:"answer"`
	SubQuestions []SubQuestion `json:"sub_questions"`
}

// Failed returns the sub-questions that did not produce an answer.
func (r Result) Failed() []SubQuestion {
	var out []SubQuestion
	for _, sq := range r.SubQuestions {
		if sq.Status == StatusFailed {
			out = append(out, sq)
		}
	}
	return out
}

// --- Model protocol types ---

// CompletionRequest is one prompt sent to a model endpoint.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the model's text plus token accounting.
type CompletionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage counts tokens consumed by one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
