package quarry

import "context"

// Store abstracts the retrieval store that holds enriched chunks.
// Implementations index the chunks' rendered text (content plus
// LLM-visible metadata) and answer ranked keyword searches.
// Persistence and search internals are the store's concern, not the
// core's.
type Store interface {
	// Init creates schema or otherwise prepares the store.
	Init(ctx context.Context) error
	// StoreDocument persists a document and its enriched chunks.
	StoreDocument(ctx context.Context, doc Document, chunks []Chunk) error
	// SearchChunks returns up to topK chunks ranked by relevance to
	// the query, best first.
	SearchChunks(ctx context.Context, query string, topK int) ([]ScoredChunk, error)
	// Close releases the store's resources.
	Close() error
}
