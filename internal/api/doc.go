// Package api exposes the chat decision core over HTTP: a JSON endpoint
// for synchronous turns and an SSE endpoint for streaming, plus health
// probes. Handlers resolve the model, derive request settings, resolve a
// credential, and route through either the provider's native file-search
// tools or the fallback retrieval orchestrator.
package api
