package modelreg

import (
	"errors"
	"testing"
)

func testRegistry() *Registry {
	return NewRegistry([]Entry{
		{ID: "gpt-5", Provider: ProviderOpenAI, Adapter: "responses", ReasoningCapable: true, SupportsFileSearchTools: true, NativeSearch: true},
		{ID: "gpt-4o", Provider: ProviderOpenAI, Adapter: "chat"},
		{ID: "gemini-2.5-flash", Provider: ProviderGoogle, Adapter: "genai", NativeSearch: true},
		{ID: "broken-model", Provider: ProviderOpenAI}, // no adapter
	})
}

func TestConfiguration(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		name          string
		original      string
		resolved      string
		wantErr       bool
		wantGPT5      bool
		wantReasoning bool
		wantTools     bool
	}{
		{"resolved model found", "alias", "gpt-5", false, true, true, true},
		{"falls back to original", "gpt-4o", "unknown", false, false, false, false},
		{"unknown model", "unknown-model", "unknown-model", true, false, false, false},
		{"entry without adapter", "broken-model", "broken-model", true, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := reg.Configuration(tt.original, tt.resolved)
			if tt.wantErr {
				if !errors.Is(err, ErrModelNotFound) {
					t.Fatalf("Configuration() error = %v, want ErrModelNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Configuration() error = %v", err)
			}
			if cfg.IsGPT5Class != tt.wantGPT5 {
				t.Errorf("IsGPT5Class = %v, want %v", cfg.IsGPT5Class, tt.wantGPT5)
			}
			if cfg.IsReasoningCapable != tt.wantReasoning {
				t.Errorf("IsReasoningCapable = %v, want %v", cfg.IsReasoningCapable, tt.wantReasoning)
			}
			if cfg.SupportsFileSearchTools != tt.wantTools {
				t.Errorf("SupportsFileSearchTools = %v, want %v", cfg.SupportsFileSearchTools, tt.wantTools)
			}
		})
	}
}

func TestSettingsEnableSearchAlwaysFalse(t *testing.T) {
	reg := testRegistry()

	// Including a model whose entry advertises native search support.
	for _, model := range []string{"gpt-5", "gpt-4o", "gemini-2.5-flash"} {
		cfg, err := reg.Configuration(model, model)
		if err != nil {
			t.Fatalf("Configuration(%q) error = %v", model, err)
		}
		if s := cfg.Settings("high", "low"); s.EnableSearch {
			t.Errorf("Settings(%q).EnableSearch = true, want false", model)
		}
	}
}

func TestSettingsReasoningHints(t *testing.T) {
	reg := testRegistry()

	reasoning, _ := reg.Configuration("gpt-5", "gpt-5")
	s := reasoning.Settings("medium", "high")
	if s.ReasoningEffort != "medium" || s.Verbosity != "high" {
		t.Errorf("reasoning hints not populated: %+v", s)
	}
	if s.Headers["X-Reasoning-Effort"] != "medium" {
		t.Errorf("X-Reasoning-Effort header = %q, want %q", s.Headers["X-Reasoning-Effort"], "medium")
	}
	if s.Headers["X-Verbosity"] != "high" {
		t.Errorf("X-Verbosity header = %q, want %q", s.Headers["X-Verbosity"], "high")
	}

	plain, _ := reg.Configuration("gpt-4o", "gpt-4o")
	s = plain.Settings("medium", "high")
	if s.ReasoningEffort != "" || s.Verbosity != "" || s.Headers != nil {
		t.Errorf("non-reasoning model must not carry hints or headers: %+v", s)
	}
}

func TestProviderFor(t *testing.T) {
	reg := testRegistry()
	if got := reg.ProviderFor("gemini-2.5-flash"); got != ProviderGoogle {
		t.Errorf("ProviderFor() = %q, want %q", got, ProviderGoogle)
	}
	if got := reg.ProviderFor("nope"); got != "" {
		t.Errorf("ProviderFor(unknown) = %q, want empty", got)
	}
}
