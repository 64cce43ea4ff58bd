package retrieval

// Chunk is a scored unit of retrieved document content with provenance.
// Chunks are immutable values; ordering is caller-significant (descending
// relevance) and is not enforced here; consumers sort before use.
type Chunk struct {
	FileID   string  // Provider document identifier
	FileName string  // Human-readable source name
	Score    float64 // Similarity score in [0, 1]
	Content  string  // Chunk text
	URL      string  // Optional source link ("" = absent)
}

// Options configures a retrieval call.
type Options struct {
	TopK int // Maximum number of chunks to return; must be > 0
}

// AugmentOptions configures prompt augmentation.
type AugmentOptions struct {
	// BudgetTokens bounds how much retrieved content is injected into the
	// prompt. Tokens are approximated at a fixed character ratio; no
	// tokenizer dependency.
	BudgetTokens int
}
