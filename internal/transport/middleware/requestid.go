package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/waypoint-hq/field-expense/pkg/logger"
)

const traceHeader = "X-Trace-ID"

// RequestID assigns each request a trace id, honoring one supplied by the
// caller, and binds it to the request-scoped logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)
		w.Header().Set(traceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
