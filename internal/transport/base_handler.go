package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/pkg/logger"
)

// Envelope is the uniform response shape: a success flag, a human message
// and either a data payload or an error descriptor.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// BaseHandler provides common functionality for HTTP handlers.
type BaseHandler struct {
	Logger *slog.Logger
}

func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteSuccess writes a success envelope.
func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	h.writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteAppError maps an error to the error envelope; unknown errors become
// opaque internal errors so storage details never leak to callers.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.Logger.Error("unhandled service error", "error", err)
		appErr = internal.NewInternalError("an unexpected error occurred", err)
	}
	h.writeJSON(w, appErr.StatusCode, Envelope{
		Success: false,
		Message: appErr.Message,
		Error:   appErr,
	})
}

// WriteError writes a bare error envelope for transport-level failures
// (bad payloads, bad path params).
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Envelope{Success: false, Message: message})
}

func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// ExtractTokenFromHeader extracts a Bearer token from the Authorization header.
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
