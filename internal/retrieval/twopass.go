package retrieval

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Rewriter is the auxiliary query-rewrite model boundary. Implementations
// expand or disambiguate the raw query using conversation history (resolving
// pronouns, adding synonyms) with a fast, cheap model.
type Rewriter interface {
	Rewrite(ctx context.Context, query string, history []*ai.Message) (string, error)
}

// TwoPassRetriever rewrites the query before vector search.
//
// Errors from either pass propagate to the caller unchanged. This type does
// not fall back to plain vector search on rewrite failure; that decision is
// the Orchestrator's, so failure absorption happens in exactly one place.
type TwoPassRetriever struct {
	rewriter Rewriter
	vector   *VectorRetriever
}

// NewTwoPassRetriever creates a two-pass retriever.
func NewTwoPassRetriever(rewriter Rewriter, vector *VectorRetriever) *TwoPassRetriever {
	return &TwoPassRetriever{rewriter: rewriter, vector: vector}
}

// Retrieve rewrites query with history context, then searches with the
// rewritten query and the same topK.
func (r *TwoPassRetriever) Retrieve(ctx context.Context, query string, history []*ai.Message, opts Options) ([]Chunk, error) {
	rewritten, err := r.rewriter.Rewrite(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("query rewrite: %w", err)
	}
	return r.vector.Retrieve(ctx, rewritten, opts)
}
