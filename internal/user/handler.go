package user

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/ledger"
	"github.com/waypoint-hq/field-expense/internal/transport"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]*User, error)
}

// BalanceReplayer reconstructs a user's balance for the audit endpoint.
type BalanceReplayer interface {
	Replay(ctx context.Context, userID int64) (*ledger.Replay, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Ledger  BalanceReplayer
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI, ledgerAPI BalanceReplayer) *Handler {
	return &Handler{BaseHandler: base, Service: service, Ledger: ledgerAPI}
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", actor)
}

// GetBalance returns the stored scalar alongside the full ledger replay so
// callers can see the running history and the consistency check.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	if id != actor.ID && !actor.IsAdmin() {
		h.WriteAppError(w, internal.ErrUnauthorizedAccess)
		return
	}

	replay, err := h.Ledger.Replay(r.Context(), id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", replay)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := 50, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	users, err := h.Service.List(r.Context(), ScopeFor(actor), limit, offset)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}
