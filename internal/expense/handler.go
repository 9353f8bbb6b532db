package expense

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
	CreateExpense(ctx context.Context, actor *user.User, dto *CreateExpenseDTO) (*Expense, error)
	GetByID(ctx context.Context, actor *user.User, id int64) (*Expense, error)
	List(ctx context.Context, actor *user.User, filter ListFilter) ([]*Expense, error)
	UpdateExpense(ctx context.Context, actor *user.User, id int64, dto *UpdateExpenseDTO) (*Expense, error)
	DeleteExpense(ctx context.Context, actor *user.User, id int64) error
	Approve(ctx context.Context, approver *user.User, expenseID int64, dto *ApproveDTO) (*ApprovalResult, error)
	Reject(ctx context.Context, approver *user.User, expenseID int64, dto *RejectDTO) (*Expense, error)
	BulkApprove(ctx context.Context, approver *user.User, dto *BulkApproveDTO) (*BulkResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exp, err := h.Service.CreateExpense(r.Context(), actor, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusCreated, "expense created", exp)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	exp, err := h.Service.GetByID(r.Context(), actor, id)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", exp)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := ListFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
	}
	if uid := queryInt(r, "user_id", 0); uid > 0 {
		filter.UserID = int64(uid)
	}

	expenses, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"expenses": expenses,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	var dto UpdateExpenseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exp, err := h.Service.UpdateExpense(r.Context(), actor, id, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "expense updated", exp)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	if err := h.Service.DeleteExpense(r.Context(), actor, id); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "expense deleted", nil)
}

func (h *Handler) ApproveExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	var dto ApproveDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Approve(r.Context(), actor, id, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.Logger.Info("expense approved via API",
		"expense_id", id,
		"approver_id", actor.ID,
		"approved_amount", result.ApprovedAmount)
	h.WriteSuccess(w, http.StatusOK, "expense approved", result)
}

func (h *Handler) RejectExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := pathID(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid expense ID")
		return
	}

	var dto RejectDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exp, err := h.Service.Reject(r.Context(), actor, id, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "expense rejected", exp)
}

func (h *Handler) BulkApproveExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto BulkApproveDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.BulkApprove(r.Context(), actor, &dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "bulk approval processed", result)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}
