package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// requestIDFromContext returns the request ID, or "" when none was set.
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// statusWriter records the status code and byte count passing through a
// ResponseWriter. Flush is forwarded so SSE keeps streaming behind the
// stack; Unwrap supports http.ResponseController.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withRequestID tags each request with an ID, minting one when the caller
// did not supply X-Request-ID, and echoes it in the response header.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRecovery converts handler panics into a 500 when nothing has been
// written yet. Once the status is on the wire the panic is only logged;
// the truncated body tells the client enough.
func withRecovery(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			logger.Error("panic recovered",
				"error", v,
				"path", r.URL.Path,
				"headers_sent", sw.status != 0,
			)
			if sw.status == 0 {
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
			}
		}()
		next.ServeHTTP(sw, r)
	})
}

// withAccessLog emits one debug line per completed request. It reuses the
// *statusWriter installed by withRecovery rather than wrapping twice.
func withAccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw, ok := w.(*statusWriter)
		if !ok {
			sw = &statusWriter{ResponseWriter: w}
			w = sw
		}

		start := time.Now()
		next.ServeHTTP(w, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", sw.bytes,
			"duration", time.Since(start),
			"ip", r.RemoteAddr,
			"request_id", requestIDFromContext(r.Context()),
		)
	})
}
