package retrieval

// Mode selects the retrieval strategy for a chat turn.
type Mode string

const (
	// ModeTwoPass rewrites the query with an auxiliary model before vector search.
	ModeTwoPass Mode = "two-pass"

	// ModeVector searches the embedding index with the raw user query.
	ModeVector Mode = "vector"
)

// EnableFileSearchTools reports whether the provider's native file-search
// tool should be enabled for this turn. True only when the caller asked for
// search and the model supports the tool.
func EnableFileSearchTools(enableSearch, modelSupportsTools bool) bool {
	return enableSearch && modelSupportsTools
}

// UseFallbackRetrieval reports whether the orchestrator should perform its
// own retrieval instead. True only when search is requested but the model
// cannot run file-search tools itself.
//
// For any input, at most one of EnableFileSearchTools and
// UseFallbackRetrieval is true; both are false when enableSearch is false.
func UseFallbackRetrieval(enableSearch, modelSupportsTools bool) bool {
	return enableSearch && !modelSupportsTools
}

// SelectMode picks the retrieval strategy from the static two-pass flag.
func SelectMode(twoPassEnabled bool) Mode {
	if twoPassEnabled {
		return ModeTwoPass
	}
	return ModeVector
}
