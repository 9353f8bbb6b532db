package journey

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/waypoint-hq/field-expense/internal/transport"
	"github.com/waypoint-hq/field-expense/internal/user"
)

type ServiceAPI interface {
	Start(ctx context.Context, actor *user.User, dto *StartJourneyDTO) (*Journey, error)
	End(ctx context.Context, actor *user.User, journeyID int64, dto *EndJourneyDTO) (*EndJourneyResult, error)
	Cancel(ctx context.Context, actor *user.User, journeyID int64, dto *CancelJourneyDTO) (*Journey, error)
	GetByID(ctx context.Context, actor *user.User, journeyID int64) (*Journey, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Journey, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) StartJourney(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto StartJourneyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.Service.Start(r.Context(), actor, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "journey started", j)
}

func (h *Handler) EndJourney(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid journey ID")
		return
	}

	var dto EndJourneyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.End(r.Context(), actor, id, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.Logger.Info("journey ended via API",
		"journey_id", id,
		"user_id", actor.ID,
		"distance_km", result.Journey.DistanceKm.String())
	h.WriteSuccess(w, http.StatusOK, "journey completed", result)
}

func (h *Handler) CancelJourney(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid journey ID")
		return
	}

	var dto CancelJourneyDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j, err := h.Service.Cancel(r.Context(), actor, id, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "journey cancelled", j)
}

func (h *Handler) GetJourney(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid journey ID")
		return
	}

	j, err := h.Service.GetByID(r.Context(), actor, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", j)
}

func (h *Handler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
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

	journeys, err := h.Service.ListByUser(r.Context(), actor.ID, limit, offset)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"journeys": journeys,
		"limit":    limit,
		"offset":   offset,
	})
}
