// Package modelreg resolves model identifiers to capability flags and
// request settings. The registry is read-only from this package's
// perspective; its owner may share or cache it freely.
package modelreg

import "errors"

// ErrModelNotFound indicates the model has no registry entry or its entry
// lacks an execution adapter. Fatal: surfaced to the caller, no retry.
var ErrModelNotFound = errors.New("model not found in registry")

// Provider identifiers used across the registry and credential resolution.
const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderXAI       = "xai"
	ProviderOllama    = "ollama"
)

// Entry describes one model in the registry.
type Entry struct {
	ID       string // Model identifier (registry key)
	Provider string // Owning provider ("openai", "google", ...)
	Adapter  string // Execution adapter name; empty means not runnable

	ReasoningCapable        bool // Accepts reasoning effort / verbosity hints
	SupportsFileSearchTools bool // Can run provider-native file search
	NativeSearch            bool // Provider advertises built-in web/file search
}

// Registry is a read-only model lookup table.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry from the given entries.
func NewRegistry(entries []Entry) *Registry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return &Registry{entries: m}
}

// Lookup returns the entry for id, or false when absent.
func (r *Registry) Lookup(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Default returns the built-in registry. Kept small on purpose: the
// surrounding system owns the authoritative catalog and injects it here.
func Default() *Registry {
	return NewRegistry([]Entry{
		{ID: "gpt-5", Provider: ProviderOpenAI, Adapter: "responses", ReasoningCapable: true, SupportsFileSearchTools: true, NativeSearch: true},
		{ID: "gpt-5-mini", Provider: ProviderOpenAI, Adapter: "responses", ReasoningCapable: true, SupportsFileSearchTools: true, NativeSearch: true},
		{ID: "gpt-5-nano", Provider: ProviderOpenAI, Adapter: "responses", ReasoningCapable: true, SupportsFileSearchTools: false},
		{ID: "gpt-4o", Provider: ProviderOpenAI, Adapter: "chat", SupportsFileSearchTools: false},
		{ID: "gemini-2.5-pro", Provider: ProviderGoogle, Adapter: "genai", ReasoningCapable: true, NativeSearch: true},
		{ID: "gemini-2.5-flash", Provider: ProviderGoogle, Adapter: "genai", NativeSearch: true},
		{ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, Adapter: "messages", ReasoningCapable: true},
		{ID: "grok-4", Provider: ProviderXAI, Adapter: "chat", ReasoningCapable: true},
	})
}

// ProviderFor resolves the provider that owns model. Returns "" when the
// model is unknown; callers decide how to degrade.
func (r *Registry) ProviderFor(model string) string {
	if e, ok := r.entries[model]; ok {
		return e.Provider
	}
	return ""
}
