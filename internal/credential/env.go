package credential

import (
	"os"

	"github.com/quillon/quill/internal/modelreg"
)

// envKeyNames maps each provider to its environment variable. A single
// explicit table keeps the environment tier exhaustive and easy to extend;
// adding a provider is one line here, not a new conditional.
var envKeyNames = map[string]string{
	modelreg.ProviderOpenAI:    "OPENAI_API_KEY",
	modelreg.ProviderGoogle:    "GOOGLE_API_KEY",
	modelreg.ProviderAnthropic: "ANTHROPIC_API_KEY",
	modelreg.ProviderXAI:       "XAI_API_KEY",
}

// envKey returns the environment-level key for provider, or "" when none is
// configured or the provider is unknown.
func envKey(provider string) string {
	name, ok := envKeyNames[provider]
	if !ok {
		return ""
	}
	return os.Getenv(name)
}
