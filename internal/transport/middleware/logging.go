package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// redactedFields are substrings of header or JSON field names whose values
// must never reach the logs.
var redactedFields = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"credential",
	"cookie",
}

// LoggingMiddleware logs one line per request and one per response.
// Request bodies are captured with credential fields redacted; response
// bodies are logged by size only, since approval and balance payloads can
// get large.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"body", redactedRequestBody(r),
			)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			code := sw.status
			if code == 0 {
				code = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case code >= 500:
				level = slog.LevelError
			case code >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "response",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", code,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_bytes", sw.written,
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// redactedRequestBody reads and restores the request body, masking
// credential fields in JSON payloads.
func redactedRequestBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if len(raw) == 0 {
		return ""
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// not JSON; drop rather than risk leaking credentials
		return "[non-json body omitted]"
	}
	masked, err := json.Marshal(redactJSON(payload))
	if err != nil {
		return "[unloggable body]"
	}
	return string(masked)
}

func redactJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if isRedactedField(k) {
				out[k] = "[REDACTED]"
			} else {
				out[k] = redactJSON(item)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactJSON(item)
		}
		return out
	default:
		return v
	}
}

func isRedactedField(name string) bool {
	lower := strings.ToLower(name)
	for _, f := range redactedFields {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
