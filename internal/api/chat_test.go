package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/retrieval"
	"github.com/quillon/quill/internal/testutil"
)

func postChat(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatSendValidation(t *testing.T) {
	srv := newTestServer(t, &testutil.MockSearcher{}, testutil.NewMockGenerator("ok"))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "missing messages",
			body:       `{"model":"gpt-4o"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_messages",
		},
		{
			name:       "missing model",
			body:       `{"messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "missing_model",
		},
		{
			name:       "unknown model",
			body:       `{"model":"gpt-99","messages":[{"role":"user","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "model_not_found",
		},
		{
			name:       "unknown role",
			body:       `{"model":"gpt-4o","messages":[{"role":"robot","content":"hi"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, srv, "/api/v1/chat", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal error response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestChatSendFallbackRetrieval(t *testing.T) {
	// gpt-4o cannot run file-search tools, so enableSearch routes through
	// the orchestrator's own retrieval.
	searcher := &testutil.MockSearcher{Chunks: []retrieval.Chunk{
		{FileID: "f1", FileName: "guide.md", Score: 0.91, Content: "vector indexes"},
	}}
	gen := testutil.NewMockGenerator("answer about indexes")
	srv := newTestServer(t, searcher, gen)

	rec := postChat(t, srv, "/api/v1/chat",
		`{"model":"gpt-4o","enableSearch":true,"messages":[{"role":"user","content":"how do indexes work?"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Response != "answer about indexes" {
		t.Errorf("response = %q, want %q", resp.Response, "answer about indexes")
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("model = %q, want %q", resp.Model, "gpt-4o")
	}
	if resp.RunID == "" {
		t.Error("runId is empty")
	}

	queries := searcher.Queries()
	if len(queries) != 1 || queries[0] != "how do indexes work?" {
		t.Errorf("searcher queries = %v, want one query with the user text", queries)
	}

	reqs := gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generator requests = %d, want 1", len(reqs))
	}
	if !strings.Contains(reqs[0].SystemPrompt, "vector indexes") {
		t.Error("system prompt missing retrieved context")
	}
	if reqs[0].EnableFileSearchTools {
		t.Error("fallback path must not enable native file-search tools")
	}
}

func TestChatSendNativeTools(t *testing.T) {
	// gpt-5 supports file-search tools, so enableSearch goes direct and
	// the searcher is never consulted.
	searcher := &testutil.MockSearcher{}
	gen := testutil.NewMockGenerator("native answer")
	srv := newTestServer(t, searcher, gen)

	rec := postChat(t, srv, "/api/v1/chat",
		`{"model":"gpt-5","enableSearch":true,"messages":[{"role":"user","content":"hello"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if got := len(searcher.Queries()); got != 0 {
		t.Errorf("searcher queried %d times on the native tools path, want 0", got)
	}

	reqs := gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generator requests = %d, want 1", len(reqs))
	}
	if !reqs[0].EnableFileSearchTools {
		t.Error("native tools path must enable file-search tools")
	}
	if reqs[0].SystemPrompt != "You are a helpful assistant." {
		t.Errorf("system prompt = %q, want the unaugmented base prompt", reqs[0].SystemPrompt)
	}
}

func TestChatSendSearchDisabled(t *testing.T) {
	searcher := &testutil.MockSearcher{}
	gen := testutil.NewMockGenerator("plain answer")
	srv := newTestServer(t, searcher, gen)

	rec := postChat(t, srv, "/api/v1/chat",
		`{"model":"gpt-5","enableSearch":false,"messages":[{"role":"user","content":"hello"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := len(searcher.Queries()); got != 0 {
		t.Errorf("searcher queried %d times with search disabled, want 0", got)
	}

	reqs := gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generator requests = %d, want 1", len(reqs))
	}
	if reqs[0].EnableFileSearchTools {
		t.Error("file-search tools enabled with search disabled")
	}
}

func TestChatSendGuestHeaderCredential(t *testing.T) {
	gen := testutil.NewMockGenerator("ok")
	srv := newTestServer(t, &testutil.MockSearcher{}, gen)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(
		`{"model":"gemini-2.5-flash","messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("X-Model-Provider", "google")
	req.Header.Set("X-Provider-Api-Key", "guest-key")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.CredentialSource != string(credential.SourceGuestHeader) {
		t.Errorf("credentialSource = %q, want %q", resp.CredentialSource, credential.SourceGuestHeader)
	}

	reqs := gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generator requests = %d, want 1", len(reqs))
	}
	if reqs[0].Credential.APIKey != "guest-key" {
		t.Errorf("credential key = %q, want %q", reqs[0].Credential.APIKey, "guest-key")
	}
}

func TestChatSendReasoningSettings(t *testing.T) {
	gen := testutil.NewMockGenerator("ok")
	srv := newTestServer(t, &testutil.MockSearcher{}, gen)

	rec := postChat(t, srv, "/api/v1/chat",
		`{"model":"gpt-5","reasoningEffort":"high","verbosity":"low","messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	reqs := gen.Requests()
	if len(reqs) != 1 {
		t.Fatalf("generator requests = %d, want 1", len(reqs))
	}
	settings := reqs[0].Settings
	if settings.ReasoningEffort != "high" || settings.Verbosity != "low" {
		t.Errorf("settings = %+v, want effort high verbosity low", settings)
	}
	if settings.EnableSearch {
		t.Error("EnableSearch must stay false in derived settings")
	}
}

func TestChatStreamEvents(t *testing.T) {
	gen := testutil.NewMockGenerator("streamed text")
	srv := newTestServer(t, &testutil.MockSearcher{}, gen)

	rec := postChat(t, srv, "/api/v1/chat/stream",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}
	if !strings.Contains(body, "event: chunk") {
		t.Errorf("stream missing chunk event: %q", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("stream missing done event: %q", body)
	}
	if !strings.Contains(body, `"streamed text"`) {
		t.Errorf("stream missing response text: %q", body)
	}
}

func TestChatStreamValidationError(t *testing.T) {
	srv := newTestServer(t, &testutil.MockSearcher{}, testutil.NewMockGenerator("ok"))

	rec := postChat(t, srv, "/api/v1/chat/stream", `{"model":"gpt-99","messages":[{"role":"user","content":"hi"}]}`)

	body := rec.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Errorf("stream missing error event: %q", body)
	}
	if !strings.Contains(body, "model_not_found") {
		t.Errorf("stream missing error code: %q", body)
	}
}

func TestToParts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain string", `"hello"`, 1, false},
		{"text parts", `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, 2, false},
		{"media part", `[{"type":"media","url":"https://x/img.png","contentType":"image/png"}]`, 1, false},
		{"empty content", ``, 0, true},
		{"unknown part type", `[{"type":"audio"}]`, 0, true},
		{"number content", `42`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := toParts(json.RawMessage(tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("toParts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(parts) != tt.want {
				t.Errorf("toParts() returned %d parts, want %d", len(parts), tt.want)
			}
		})
	}
}
