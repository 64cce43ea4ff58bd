package retrieval

import (
	"fmt"
	"strings"
)

// charsPerToken approximates tokens as a fixed character ratio. Good enough
// for budgeting injected context; the generation provider does exact
// accounting on its side.
const charsPerToken = 4

// BuildAugmentedSystemPrompt appends retrieved context and source
// annotations to the base system prompt.
//
// Chunk contents are included in the order given (callers pass chunks
// pre-sorted by descending score) until the character budget
// (BudgetTokens × charsPerToken) is exhausted; the chunk that crosses the
// budget is clipped and later chunks are dropped. Dropped chunks do not
// appear in the sources list.
//
// Empty chunks returns base unchanged; no empty section headers.
func BuildAugmentedSystemPrompt(base string, chunks []Chunk, opts AugmentOptions) string {
	if len(chunks) == 0 {
		return base
	}

	remaining := opts.BudgetTokens * charsPerToken

	var context strings.Builder
	var sources strings.Builder
	context.WriteString("\n\n[Retrieved Context]\n")
	sources.WriteString("\n[Sources]\n")

	included := 0
	for _, chunk := range chunks {
		if remaining <= 0 {
			break
		}

		content := clipRunes(chunk.Content, remaining)
		remaining -= len([]rune(content))

		context.WriteString(content)
		context.WriteString("\n")

		sources.WriteString(fmt.Sprintf("- %s (%.1f%%)", chunk.FileName, chunk.Score*100))
		if chunk.URL != "" {
			sources.WriteString(" - " + chunk.URL)
		}
		sources.WriteString("\n")
		included++
	}

	if included == 0 {
		return base
	}

	return base + context.String() + sources.String()
}

// clipRunes truncates s to at most n runes without splitting a multi-byte
// sequence.
func clipRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

