package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/quillon/quill/internal/retrieval"
)

// MockGenerator provides deterministic generation responses for tests. It
// matches the latest user message against registered patterns and returns
// the corresponding response, streaming it through OnChunk when set.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu       sync.Mutex
	rules    []generatorRule
	fallback string
	requests []retrieval.GenerateRequest
}

type generatorRule struct {
	pattern  string // substring match, case-insensitive
	response string
}

// NewMockGenerator creates a mock with the given fallback response.
func NewMockGenerator(fallback string) *MockGenerator {
	return &MockGenerator{fallback: fallback}
}

// AddResponse registers a pattern-response pair. First match wins.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, generatorRule{pattern: strings.ToLower(pattern), response: response})
}

// Requests returns a copy of all recorded requests.
func (m *MockGenerator) Requests() []retrieval.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]retrieval.GenerateRequest, len(m.requests))
	copy(cp, m.requests)
	return cp
}

// Stream implements retrieval.Generator.
func (m *MockGenerator) Stream(ctx context.Context, req retrieval.GenerateRequest) (*retrieval.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	response := m.fallback
	query := strings.ToLower(lastUserText(req.Messages))
	for _, rule := range m.rules {
		if strings.Contains(query, rule.pattern) {
			response = rule.response
			break
		}
	}
	m.mu.Unlock()

	if req.OnChunk != nil {
		if err := req.OnChunk(ctx, response); err != nil {
			return nil, err
		}
	}
	return &retrieval.Response{FinalText: response, Model: req.Model.Entry.ID}, nil
}

func lastUserText(messages []*ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg == nil || msg.Role != ai.RoleUser {
			continue
		}
		var sb strings.Builder
		for _, part := range msg.Content {
			if part != nil && part.IsText() {
				sb.WriteString(part.Text)
			}
		}
		return sb.String()
	}
	return ""
}

// MockSearcher returns canned chunks and records queries.
type MockSearcher struct {
	mu      sync.Mutex
	Chunks  []retrieval.Chunk
	Err     error
	queries []string
}

// Search implements retrieval.Searcher.
func (s *MockSearcher) Search(_ context.Context, query string, _ int) ([]retrieval.Chunk, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Chunks, nil
}

// Queries returns a copy of recorded queries.
func (s *MockSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// MockRewriter returns a fixed rewrite or error.
type MockRewriter struct {
	Result string
	Err    error
}

// Rewrite implements retrieval.Rewriter.
func (r *MockRewriter) Rewrite(_ context.Context, query string, _ []*ai.Message) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if r.Result == "" {
		return query, nil
	}
	return r.Result, nil
}
