package retrieval

import "testing"

func TestGatingTruthTable(t *testing.T) {
	tests := []struct {
		name          string
		enableSearch  bool
		supportsTools bool
		wantTools     bool
		wantFallback  bool
	}{
		{"search on, tools supported", true, true, true, false},
		{"search on, tools unsupported", true, false, false, true},
		{"search off, tools supported", false, true, false, false},
		{"search off, tools unsupported", false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTools := EnableFileSearchTools(tt.enableSearch, tt.supportsTools)
			gotFallback := UseFallbackRetrieval(tt.enableSearch, tt.supportsTools)

			if gotTools != tt.wantTools {
				t.Errorf("EnableFileSearchTools(%v, %v) = %v, want %v",
					tt.enableSearch, tt.supportsTools, gotTools, tt.wantTools)
			}
			if gotFallback != tt.wantFallback {
				t.Errorf("UseFallbackRetrieval(%v, %v) = %v, want %v",
					tt.enableSearch, tt.supportsTools, gotFallback, tt.wantFallback)
			}
			if gotTools && gotFallback {
				t.Error("tools and fallback must never both be true")
			}
			if tt.enableSearch && !gotTools && !gotFallback {
				t.Error("exactly one of tools/fallback must hold when search is enabled")
			}
		})
	}
}

func TestSelectMode(t *testing.T) {
	if got := SelectMode(true); got != ModeTwoPass {
		t.Errorf("SelectMode(true) = %q, want %q", got, ModeTwoPass)
	}
	if got := SelectMode(false); got != ModeVector {
		t.Errorf("SelectMode(false) = %q, want %q", got, ModeVector)
	}
}
