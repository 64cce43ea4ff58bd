package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/modelreg"
)

// StreamCallback receives partial response text as it is produced.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, text string) error

// Response is the completed result of a generation call.
type Response struct {
	FinalText string // Model's final text output
	Model     string // Model that actually answered
}

// GenerateRequest bundles everything the generation collaborator needs.
type GenerateRequest struct {
	SystemPrompt string
	Messages     []*ai.Message
	Credential   credential.Credential
	Model        modelreg.Config
	Settings     modelreg.Settings

	// EnableFileSearchTools turns on the provider's native file-search
	// tool. Mutually exclusive with fallback retrieval; the orchestrator
	// always leaves it false.
	EnableFileSearchTools bool

	OnChunk StreamCallback // nil = no streaming
}

// Generator is the external streaming generation collaborator. Errors from
// Stream are fatal to the turn and propagate uncaught.
type Generator interface {
	Stream(ctx context.Context, req GenerateRequest) (*Response, error)
}

// Config holds the static retrieval knobs, chosen once at startup.
type Config struct {
	TwoPassEnabled bool
	TopK           int
	BudgetTokens   int
}

// Params bundles the per-turn inputs to HandleFallbackRetrieval.
type Params struct {
	Messages   []*ai.Message
	BasePrompt string

	Credential  credential.Credential
	ModelConfig modelreg.Config
	Settings    modelreg.Settings

	// Identifiers, carried for logging only.
	ChatID         string
	UserID         string
	MessageGroupID string
	RunID          string // Correlation id; generated when empty

	OnChunk StreamCallback
}

// Orchestrator composes gating, retrieval, augmentation and generation into
// one fallback-safe pipeline.
type Orchestrator struct {
	twoPass   *TwoPassRetriever
	vector    *VectorRetriever
	generator Generator
	cfg       Config
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. twoPass may be nil when the
// two-pass flag is off.
func NewOrchestrator(twoPass *TwoPassRetriever, vector *VectorRetriever, generator Generator, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		twoPass:   twoPass,
		vector:    vector,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleFallbackRetrieval retrieves context for the latest user query,
// augments the base prompt, and delegates to the generation collaborator.
//
// Two-pass failures are absorbed here with a single vector retry; this is
// the only place they are absorbed. A vector failure after the fallback is
// fatal, as are generation errors.
func (o *Orchestrator) HandleFallbackRetrieval(ctx context.Context, params Params) (*Response, error) {
	runID := params.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := o.logger.With(
		"chat_id", params.ChatID,
		"user_id", params.UserID,
		"message_group_id", params.MessageGroupID,
		"run_id", runID,
	)

	query := latestUserQuery(params.Messages)
	opts := Options{TopK: o.cfg.TopK}

	chunks, err := o.retrieve(ctx, query, params.Messages, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	prompt := BuildAugmentedSystemPrompt(params.BasePrompt, chunks, AugmentOptions{
		BudgetTokens: o.cfg.BudgetTokens,
	})

	logger.Info("retrieval complete",
		"mode", string(SelectMode(o.cfg.TwoPassEnabled)),
		"chunks", len(chunks),
	)

	return o.generator.Stream(ctx, GenerateRequest{
		SystemPrompt: prompt,
		Messages:     params.Messages,
		Credential:   params.Credential,
		Model:        params.ModelConfig,
		Settings:     params.Settings,
		OnChunk:      params.OnChunk,
	})
}

// retrieve runs the selected strategy. In two-pass mode a failure is logged
// and retried once with plain vector search using the same query and topK.
func (o *Orchestrator) retrieve(ctx context.Context, query string, history []*ai.Message, opts Options, logger *slog.Logger) ([]Chunk, error) {
	if SelectMode(o.cfg.TwoPassEnabled) == ModeTwoPass && o.twoPass != nil {
		chunks, err := o.twoPass.Retrieve(ctx, query, history, opts)
		if err == nil {
			return chunks, nil
		}
		logger.Warn("two-pass retrieval failed; falling back to vector retrieval", "error", err)
	}
	return o.vector.Retrieve(ctx, query, opts)
}

// latestUserQuery extracts the query text from the newest message. A
// non-user last message, an empty message list, or content without text
// parts yields the empty string; retrieval is still attempted and the
// provider decides whether to error or return nothing.
func latestUserQuery(messages []*ai.Message) string {
	if len(messages) == 0 {
		return ""
	}
	last := messages[len(messages)-1]
	if last == nil || last.Role != ai.RoleUser {
		return ""
	}

	parts := make([]string, 0, len(last.Content))
	for _, part := range last.Content {
		if part != nil && part.IsText() && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, " ")
}
