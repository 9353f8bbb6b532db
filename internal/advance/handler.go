package advance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/transport"
	"github.com/waypoint-hq/field-expense/internal/user"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *user.User, dto *CreateAdvanceDTO) (*AdvanceResponse, error)
	Complete(ctx context.Context, actor *user.User, advanceID int64) (*AdvanceResponse, error)
	Cancel(ctx context.Context, actor *user.User, advanceID int64) (*AdvanceResponse, error)
	Delete(ctx context.Context, actor *user.User, advanceID int64) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Advance, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) CreateAdvance(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateAdvanceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Create(r.Context(), actor, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "advance recorded", resp)
}

func (h *Handler) UpdateAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid advance ID")
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var resp *AdvanceResponse
	switch dto.Status {
	case StatusCompleted:
		resp, err = h.Service.Complete(r.Context(), actor, id)
	case StatusCancelled:
		resp, err = h.Service.Cancel(r.Context(), actor, id)
	default:
		h.WriteAppError(w, internal.NewValidationError("status must be completed or cancelled", internal.ErrCodeValidationFailed))
		return
	}
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "advance updated", resp)
}

func (h *Handler) DeleteAdvance(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid advance ID")
		return
	}

	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "advance deleted", nil)
}

func (h *Handler) ListAdvances(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// employees list their own advances; admins may inspect any user's
	userID := actor.ID
	if raw := r.URL.Query().Get("user_id"); raw != "" && actor.IsAdmin() {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			userID = v
		}
	}

	limit, offset := 20, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	advances, err := h.Service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"advances": advances,
		"limit":    limit,
		"offset":   offset,
	})
}
