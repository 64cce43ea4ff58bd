package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/quillon/quill/internal/modelreg"
	"github.com/quillon/quill/internal/retrieval"
)

// pluginPrefixes maps registry providers to Genkit plugin namespaces.
var pluginPrefixes = map[string]string{
	modelreg.ProviderOpenAI:    "openai",
	modelreg.ProviderGoogle:    "googleai",
	modelreg.ProviderAnthropic: "anthropic",
	modelreg.ProviderXAI:       "xai",
	modelreg.ProviderOllama:    "ollama",
}

// GenkitGenerator is the streaming generation collaborator. It forwards the
// augmented system prompt, conversation and settings to the Genkit model
// registered for the resolved provider.
type GenkitGenerator struct {
	g      *genkit.Genkit
	logger *slog.Logger
}

// NewGenkitGenerator creates a generator.
func NewGenkitGenerator(g *genkit.Genkit, logger *slog.Logger) *GenkitGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitGenerator{g: g, logger: logger}
}

// Stream runs one generation call, relaying chunks to req.OnChunk when set.
// Errors propagate unchanged; a failed turn reports a failure, never a
// partial success.
func (gg *GenkitGenerator) Stream(ctx context.Context, req retrieval.GenerateRequest) (*retrieval.Response, error) {
	modelName := QualifiedModelName(req.Model.Entry)

	gg.logger.Debug("generation dispatch",
		"model", modelName,
		"credential_source", string(req.Credential.Source),
		"reasoning_effort", req.Settings.ReasoningEffort,
	)

	opts := []ai.GenerateOption{
		ai.WithModelName(modelName),
		ai.WithSystem(req.SystemPrompt),
		ai.WithMessages(req.Messages...),
	}
	if cfg := requestConfig(req.Settings, req.EnableFileSearchTools); cfg != nil {
		opts = append(opts, ai.WithConfig(cfg))
	}
	if req.OnChunk != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return req.OnChunk(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}

	return &retrieval.Response{
		FinalText: resp.Text(),
		Model:     req.Model.Entry.ID,
	}, nil
}

// QualifiedModelName builds the plugin-namespaced model name Genkit expects.
func QualifiedModelName(entry modelreg.Entry) string {
	prefix, ok := pluginPrefixes[entry.Provider]
	if !ok {
		return entry.ID
	}
	return prefix + "/" + entry.ID
}

// requestConfig maps reasoning hints and the file-search decision into
// provider config. fileSearchTools is only true on the direct path, when the
// gating policy chose the provider's native tool over fallback retrieval.
func requestConfig(settings modelreg.Settings, fileSearchTools bool) map[string]any {
	cfg := make(map[string]any)
	if settings.ReasoningEffort != "" {
		cfg["reasoningEffort"] = settings.ReasoningEffort
	}
	if settings.Verbosity != "" {
		cfg["verbosity"] = settings.Verbosity
	}
	if fileSearchTools {
		cfg["fileSearchTools"] = true
	}
	if len(cfg) == 0 {
		return nil
	}
	return cfg
}
