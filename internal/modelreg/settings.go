package modelreg

import (
	"fmt"
	"strings"
)

// gpt5Prefix classifies GPT-5 family models by identifier convention.
const gpt5Prefix = "gpt-5"

// Config is the per-turn view of a resolved model: the registry entry plus
// derived capability flags. Created once per request and never mutated.
type Config struct {
	Entry Entry

	IsGPT5Class             bool
	IsReasoningCapable      bool
	SupportsFileSearchTools bool
}

// Configuration looks up resolvedModel (falling back to originalModel) and
// derives capability flags. Fails with ErrModelNotFound when neither has a
// registry entry or the entry has no execution adapter.
func (r *Registry) Configuration(originalModel, resolvedModel string) (Config, error) {
	entry, ok := r.Lookup(resolvedModel)
	if !ok {
		entry, ok = r.Lookup(originalModel)
	}
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrModelNotFound, resolvedModel)
	}
	if entry.Adapter == "" {
		return Config{}, fmt.Errorf("%w: %q has no execution adapter", ErrModelNotFound, entry.ID)
	}

	return Config{
		Entry:                   entry,
		IsGPT5Class:             strings.HasPrefix(entry.ID, gpt5Prefix),
		IsReasoningCapable:      entry.ReasoningCapable,
		SupportsFileSearchTools: entry.SupportsFileSearchTools,
	}, nil
}

// Settings are the derived request settings handed to the generation call.
type Settings struct {
	// EnableSearch is always false: retrieval is governed by the
	// orchestrator's gating policy, never by the provider's native search.
	EnableSearch bool

	ReasoningEffort string // "" when the model is not reasoning-capable
	Verbosity       string // "" when the model is not reasoning-capable

	Headers map[string]string // Request headers mirroring the hints, nil when unset
}

// Settings derives request settings from the model configuration and the
// caller-requested effort and verbosity. Hints are only honored for
// reasoning-capable models and are mirrored into request headers.
func (c Config) Settings(reasoningEffort, verbosity string) Settings {
	s := Settings{EnableSearch: false}

	if !c.IsReasoningCapable {
		return s
	}

	s.ReasoningEffort = reasoningEffort
	s.Verbosity = verbosity

	headers := make(map[string]string, 2)
	if reasoningEffort != "" {
		headers["X-Reasoning-Effort"] = reasoningEffort
	}
	if verbosity != "" {
		headers["X-Verbosity"] = verbosity
	}
	if len(headers) > 0 {
		s.Headers = headers
	}
	return s
}
