package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/quillon/quill/internal/credential"
	"github.com/quillon/quill/internal/modelreg"
	"github.com/quillon/quill/internal/retrieval"
)

// maxChatBody limits chat request bodies to 1MB.
const maxChatBody = 1024 * 1024

// SSE event types for chat streaming.
const (
	eventChunk = "chunk" // Partial response text
	eventDone  = "done"  // Stream completed successfully
	eventError = "error" // Error occurred during streaming
)

// chatHandler serves chat turns: it resolves the model and credential,
// applies the retrieval gating policy, and dispatches to either the
// provider's native tools or the fallback retrieval orchestrator.
type chatHandler struct {
	registry     *modelreg.Registry
	resolver     *credential.Resolver
	orchestrator *retrieval.Orchestrator
	generator    retrieval.Generator
	basePrompt   string
	logger       *slog.Logger
}

// chatRequest is the wire format for a chat turn.
type chatRequest struct {
	Messages []wireMessage `json:"messages"`

	Model         string `json:"model"`
	ResolvedModel string `json:"resolvedModel,omitempty"`

	ReasoningEffort string `json:"reasoningEffort,omitempty"`
	Verbosity       string `json:"verbosity,omitempty"`
	EnableSearch    bool   `json:"enableSearch"`

	ChatID         string `json:"chatId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	MessageGroupID string `json:"messageGroupId,omitempty"`
}

// wireMessage carries one conversation message. Content accepts either a
// plain string or an array of typed parts.
type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// wirePart is one element of a structured content array.
type wirePart struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// chatResponse is the synchronous JSON response.
type chatResponse struct {
	Response         string `json:"response"`
	Model            string `json:"model"`
	CredentialSource string `json:"credentialSource"`
	RunID            string `json:"runId"`
}

// chunkPayload is the SSE data payload for streaming text chunks.
type chunkPayload struct {
	Text string `json:"text"`
}

// donePayload is the SSE data payload when streaming completes successfully.
type donePayload struct {
	Response         string `json:"response"`
	Model            string `json:"model"`
	CredentialSource string `json:"credentialSource"`
	RunID            string `json:"runId"`
}

// errorPayload is the SSE data payload when an error occurs.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// turn is a fully validated and resolved chat request, ready to run.
type turn struct {
	messages    []*ai.Message
	modelCfg    modelreg.Config
	settings    modelreg.Settings
	cred        credential.Credential
	request     chatRequest
	runID       string
	useTools    bool
	useFallback bool
}

// prepare decodes, validates, and resolves a chat request. Returns a
// status code and error code on failure.
func (h *chatHandler) prepare(r *http.Request) (*turn, int, string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxChatBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, http.StatusBadRequest, "invalid_request", fmt.Errorf("decode request: %w", err)
	}
	if len(req.Messages) == 0 {
		return nil, http.StatusBadRequest, "missing_messages", errors.New("messages is required")
	}
	if req.Model == "" {
		return nil, http.StatusBadRequest, "missing_model", errors.New("model is required")
	}

	messages, err := toAIMessages(req.Messages)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid_messages", err
	}

	resolved := req.ResolvedModel
	if resolved == "" {
		resolved = req.Model
	}
	modelCfg, err := h.registry.Configuration(req.Model, resolved)
	if err != nil {
		if errors.Is(err, modelreg.ErrModelNotFound) {
			return nil, http.StatusBadRequest, "model_not_found", err
		}
		return nil, http.StatusInternalServerError, "model_resolution_failed", err
	}

	settings := modelCfg.Settings(req.ReasoningEffort, req.Verbosity)

	user := &credential.User{ID: req.UserID, Authenticated: req.UserID != ""}
	cred := h.resolver.Resolve(r.Context(), user, modelCfg.Entry.ID, r.Header)

	return &turn{
		messages:    messages,
		modelCfg:    modelCfg,
		settings:    settings,
		cred:        cred,
		request:     req,
		runID:       uuid.NewString(),
		useTools:    retrieval.EnableFileSearchTools(req.EnableSearch, modelCfg.SupportsFileSearchTools),
		useFallback: retrieval.UseFallbackRetrieval(req.EnableSearch, modelCfg.SupportsFileSearchTools),
	}, 0, "", nil
}

// run executes a prepared turn through the gated path. onChunk may be nil
// for synchronous requests.
func (h *chatHandler) run(ctx context.Context, t *turn, onChunk retrieval.StreamCallback) (*retrieval.Response, error) {
	if t.useFallback {
		return h.orchestrator.HandleFallbackRetrieval(ctx, retrieval.Params{
			Messages:       t.messages,
			BasePrompt:     h.basePrompt,
			Credential:     t.cred,
			ModelConfig:    t.modelCfg,
			Settings:       t.settings,
			ChatID:         t.request.ChatID,
			UserID:         t.request.UserID,
			MessageGroupID: t.request.MessageGroupID,
			RunID:          t.runID,
			OnChunk:        onChunk,
		})
	}

	return h.generator.Stream(ctx, retrieval.GenerateRequest{
		SystemPrompt:          h.basePrompt,
		Messages:              t.messages,
		Credential:            t.cred,
		Model:                 t.modelCfg,
		Settings:              t.settings,
		EnableFileSearchTools: t.useTools,
		OnChunk:               onChunk,
	})
}

// send handles POST /api/v1/chat: synchronous JSON request/response.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	t, status, code, err := h.prepare(r)
	if err != nil {
		h.logger.Warn("chat request rejected", "code", code, "error", err)
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	resp, err := h.run(r.Context(), t, nil)
	if err != nil {
		h.logger.Error("chat turn failed",
			"run_id", t.runID,
			"model", t.modelCfg.Entry.ID,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, "generation_failed", err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:         resp.FinalText,
		Model:            resp.Model,
		CredentialSource: string(t.cred.Source),
		RunID:            t.runID,
	}, h.logger)
}

// stream handles POST /api/v1/chat/stream: SSE streaming chat.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	t, _, code, err := h.prepare(r)
	if err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: code, Message: err.Error()})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "run_id", t.runID, "chat_id", t.request.ChatID)

	onChunk := func(ctx context.Context, text string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if text == "" {
			return nil
		}
		return writeEvent(w, flusher, eventChunk, chunkPayload{Text: text})
	}

	resp, err := h.run(ctx, t, onChunk)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "run_id", t.runID)
			return
		}
		h.streamError(w, flusher, err)
		return
	}

	_ = writeEvent(w, flusher, eventDone, donePayload{
		Response:         resp.FinalText,
		Model:            resp.Model,
		CredentialSource: string(t.cred.Source),
		RunID:            t.runID,
	})

	h.logger.Debug("SSE stream completed", "run_id", t.runID)
}

// streamError maps turn errors to SSE error events.
func (h *chatHandler) streamError(w io.Writer, f http.Flusher, err error) {
	code := "stream_error"
	if errors.Is(err, modelreg.ErrModelNotFound) {
		code = "model_not_found"
	}

	h.logger.Error("chat stream failed", "error", err)
	_ = writeEvent(w, f, eventError, errorPayload{Code: code, Message: err.Error()})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}

// toAIMessages converts wire messages to the model conversation format.
func toAIMessages(wire []wireMessage) ([]*ai.Message, error) {
	messages := make([]*ai.Message, 0, len(wire))
	for i, m := range wire {
		role, err := toRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		parts, err := toParts(m.Content)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		messages = append(messages, &ai.Message{Role: role, Content: parts})
	}
	return messages, nil
}

func toRole(role string) (ai.Role, error) {
	switch role {
	case "user":
		return ai.RoleUser, nil
	case "assistant", "model":
		return ai.RoleModel, nil
	case "system":
		return ai.RoleSystem, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

// toParts decodes message content: a JSON string becomes a single text
// part, an array becomes typed parts.
func toParts(content json.RawMessage) ([]*ai.Part, error) {
	if len(content) == 0 {
		return nil, errors.New("content is required")
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return []*ai.Part{ai.NewTextPart(text)}, nil
	}

	var wireParts []wirePart
	if err := json.Unmarshal(content, &wireParts); err != nil {
		return nil, errors.New("content must be a string or an array of parts")
	}

	parts := make([]*ai.Part, 0, len(wireParts))
	for _, p := range wireParts {
		switch p.Type {
		case "text":
			parts = append(parts, ai.NewTextPart(p.Text))
		case "media", "image":
			parts = append(parts, ai.NewMediaPart(p.ContentType, p.URL))
		default:
			return nil, fmt.Errorf("unknown part type %q", p.Type)
		}
	}
	return parts, nil
}
