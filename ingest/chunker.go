// Package ingest turns raw sources into documents and documents into
// chunks ready for metadata extraction and indexing.
package ingest

import (
	"strings"

	quarry "github.com/davrk/quarry"
)

// Token counts are approximated as tokens*4 characters, which tracks
// typical BPE tokenizers closely enough for budgeting.
const charsPerToken = 4

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkTokens sets the token budget per chunk (default 512).
func WithChunkTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.chunkTokens = n }
}

// WithOverlapTokens sets the overlap between consecutive chunks in
// tokens (default 128).
func WithOverlapTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.overlapTokens = n }
}

// Chunker splits a document into overlapping, token-bounded chunks at
// whitespace boundaries. Splitting is deterministic: the same document
// always yields the same chunk boundaries.
type Chunker struct {
	chunkTokens   int
	overlapTokens int
}

// NewChunker creates a Chunker. It fails with *quarry.ErrConfig when
// the chunk budget does not exceed the overlap, since chunking could
// never advance.
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{chunkTokens: 512, overlapTokens: 128}
	for _, o := range opts {
		o(c)
	}
	if c.chunkTokens <= 0 {
		return nil, &quarry.ErrConfig{Field: "chunk_tokens", Reason: "must be positive"}
	}
	if c.overlapTokens < 0 {
		return nil, &quarry.ErrConfig{Field: "overlap_tokens", Reason: "must not be negative"}
	}
	if c.chunkTokens <= c.overlapTokens {
		return nil, &quarry.ErrConfig{Field: "chunk_tokens", Reason: "must exceed overlap_tokens"}
	}
	return c, nil
}

// Split chunks the document segment by segment so per-segment metadata
// (file name, page label) lands on the chunks cut from that segment.
// Chunk indexes are document-wide. No produced chunk is empty.
func (c *Chunker) Split(doc quarry.Document) ([]quarry.Chunk, error) {
	maxChars := c.chunkTokens * charsPerToken
	overlapChars := c.overlapTokens * charsPerToken

	var chunks []quarry.Chunk
	idx := 0
	for _, seg := range doc.Segments {
		for _, text := range chunkText(seg.Text, maxChars, overlapChars) {
			ch := quarry.Chunk{
				ID:         quarry.NewID(),
				DocumentID: doc.ID,
				Content:    text,
				ChunkIndex: idx,
			}
			for k, v := range seg.Metadata {
				ch.SetMetadata(k, v)
			}
			chunks = append(chunks, ch)
			idx++
		}
	}
	return chunks, nil
}

// chunkText splits text into overlapping pieces of at most maxChars,
// breaking only between words. A single word longer than maxChars is
// hard-cut.
func chunkText(text string, maxChars, overlapChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxChars {
		return []string{text}
	}

	words := splitLongWords(strings.Fields(text), maxChars)

	var chunks []string
	var current []string
	currentLen := 0

	for _, w := range words {
		needed := len(w)
		if currentLen > 0 {
			needed = currentLen + 1 + len(w)
		}
		if needed > maxChars && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = overlapSuffix(current, overlapChars)
			// The overlap must leave room for the pending word; drop
			// leading overlap words until it fits the budget.
			for len(current) > 0 && joinedLen(current)+1+len(w) > maxChars {
				current = current[1:]
			}
			currentLen = joinedLen(current)
		}
		current = append(current, w)
		if currentLen > 0 {
			currentLen += 1 + len(w)
		} else {
			currentLen = len(w)
		}
	}
	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitLongWords hard-cuts any word exceeding maxChars.
func splitLongWords(words []string, maxChars int) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		for len(w) > maxChars {
			out = append(out, w[:maxChars])
			w = w[maxChars:]
		}
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// overlapSuffix returns the trailing words of chunk whose joined
// length fits within overlapChars.
func overlapSuffix(words []string, overlapChars int) []string {
	if overlapChars <= 0 || len(words) == 0 {
		return nil
	}
	total := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		needed := len(words[i])
		if total > 0 {
			needed += 1
		}
		if total+needed > overlapChars {
			break
		}
		total += needed
		start = i
	}
	// Copy so appends to the next chunk never alias the emitted one.
	return append([]string(nil), words[start:]...)
}

func joinedLen(words []string) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += len(w)
	}
	return n
}
