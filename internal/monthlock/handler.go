package monthlock

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/waypoint-hq/field-expense/internal/transport"
	"github.com/waypoint-hq/field-expense/internal/user"
)

type ServiceAPI interface {
	Lock(ctx context.Context, userID int64, year, month int, closedBy int64) (*MonthLock, error)
	Unlock(ctx context.Context, userID int64, year, month int, reopenedBy int64, reason string) (*MonthLock, error)
	ListByUser(ctx context.Context, userID int64) ([]*MonthLock, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

type lockRequest struct {
	UserID int64  `json:"user_id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) LockMonth(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lock, err := h.Service.Lock(r.Context(), req.UserID, req.Year, req.Month, actor.ID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "period locked", lock)
}

func (h *Handler) UnlockMonth(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lock, err := h.Service.Unlock(r.Context(), req.UserID, req.Year, req.Month, actor.ID, req.Reason)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "period unlocked", lock)
}

func (h *Handler) ListLocks(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID := actor.ID
	if raw := r.URL.Query().Get("user_id"); raw != "" && actor.IsAdmin() {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			userID = v
		}
	}

	locks, err := h.Service.ListByUser(r.Context(), userID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"locks": locks})
}
