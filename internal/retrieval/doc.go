// Package retrieval decides, per chat turn, how supporting context is
// fetched and folded into the system prompt.
//
// The package is split into small request-scoped pieces:
//
//   - Gating policy: pure functions choosing between provider-native file
//     search tools and orchestrator-driven retrieval.
//   - VectorRetriever: direct similarity search against an external provider.
//   - TwoPassRetriever: query rewrite via an auxiliary model, then vector
//     search with the rewritten query.
//   - Augmenter: token-budgeted prompt assembly with source annotations.
//   - Orchestrator: composes the above with fallback semantics and hands the
//     augmented prompt to the generation collaborator.
//
// Two-pass failures are absorbed only in the Orchestrator; the retrievers
// themselves propagate errors unchanged so the fallback boundary stays in
// one place.
package retrieval
