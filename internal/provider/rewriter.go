package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// rewriteInstruction forces a single-line search query out of the model.
const rewriteInstruction = `You rewrite chat queries for document search.
Given the conversation and the latest query, produce ONE search query that:
- resolves pronouns and references using the conversation
- adds close synonyms for ambiguous terms
- drops filler words
Respond with the rewritten query only, on a single line. No explanations.`

// historyWindow caps how much conversation context the rewrite model sees.
const historyWindow = 6

// GenkitRewriter rewrites queries with a fast, cheap model. Used as the
// first pass of two-pass retrieval.
type GenkitRewriter struct {
	g         *genkit.Genkit
	modelName string // Provider-qualified, e.g. "googleai/gemini-2.5-flash"
}

// NewGenkitRewriter creates a rewriter bound to modelName.
func NewGenkitRewriter(g *genkit.Genkit, modelName string) *GenkitRewriter {
	return &GenkitRewriter{g: g, modelName: modelName}
}

// Rewrite expands query using history. Model errors propagate unchanged;
// the orchestrator decides whether to fall back. An empty model answer
// yields the original query rather than an empty search.
func (r *GenkitRewriter) Rewrite(ctx context.Context, query string, history []*ai.Message) (string, error) {
	prompt := fmt.Sprintf("Conversation:\n%s\nLatest query: %s", renderHistory(history), query)

	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.modelName),
		ai.WithSystem(rewriteInstruction),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("rewrite model: %w", err)
	}

	rewritten := firstLine(resp.Text())
	if rewritten == "" {
		return query, nil
	}
	return rewritten, nil
}

// renderHistory flattens the most recent messages into role-prefixed lines.
func renderHistory(history []*ai.Message) string {
	start := max(0, len(history)-historyWindow)

	var sb strings.Builder
	for _, msg := range history[start:] {
		if msg == nil {
			continue
		}
		var text strings.Builder
		for _, part := range msg.Content {
			if part != nil && part.IsText() {
				text.WriteString(part.Text)
			}
		}
		if text.Len() == 0 {
			continue
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(text.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
