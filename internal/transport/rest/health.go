package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type healthStatus string

const (
	statusHealthy   healthStatus = "healthy"
	statusUnhealthy healthStatus = "unhealthy"
)

type componentCheck struct {
	Status     healthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

type healthResponse struct {
	Status     healthStatus              `json:"status"`
	UptimeSec  int64                     `json:"uptime_s"`
	CheckedAt  time.Time                 `json:"checked_at"`
	Components map[string]componentCheck `json:"components"`
}

type HealthHandler struct {
	db        *sql.DB
	startedAt time.Time
}

func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db, startedAt: time.Now()}
}

func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// healthCheckHandler reports readiness: the service is up and the database
// answers a ping within 2 seconds.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	pingErr := h.db.PingContext(ctx)

	db := componentCheck{
		Status:     statusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if pingErr != nil {
		db.Status = statusUnhealthy
		db.Message = pingErr.Error()
	}

	resp := healthResponse{
		Status:     db.Status,
		UptimeSec:  int64(time.Since(h.startedAt).Seconds()),
		CheckedAt:  time.Now().UTC(),
		Components: map[string]componentCheck{"postgres": db},
	}

	code := http.StatusOK
	if resp.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
