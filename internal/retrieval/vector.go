package retrieval

import (
	"context"
	"fmt"
)

// Searcher is the external vector-search provider boundary.
// Implementations own embedding generation and index access.
//
// Interface is defined by the consumer, not the provider (http.RoundTripper
// style), so the orchestrator can be tested without a live index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Chunk, error)
}

// VectorRetriever performs direct similarity search with the raw query.
// Provider errors propagate unchanged; retry and fallback belong to the
// Orchestrator, not here.
type VectorRetriever struct {
	searcher Searcher
}

// NewVectorRetriever creates a retriever backed by the given provider.
func NewVectorRetriever(searcher Searcher) *VectorRetriever {
	return &VectorRetriever{searcher: searcher}
}

// Retrieve runs a single vector search.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, opts Options) ([]Chunk, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("invalid topK %d: must be > 0", opts.TopK)
	}
	return r.searcher.Search(ctx, query, opts.TopK)
}
