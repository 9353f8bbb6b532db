package auth

import (
	"context"
	"net/http"

	"github.com/waypoint-hq/field-expense/internal"
	"github.com/waypoint-hq/field-expense/internal/transport"
	"github.com/waypoint-hq/field-expense/internal/user"
)

type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Middleware verifies bearer tokens, resolves the actor and gates
// admin-only routes.
type Middleware struct {
	*transport.BaseHandler
	verifier *TokenVerifier
	users    UserGetter
}

func NewMiddleware(base *transport.BaseHandler, verifier *TokenVerifier, users UserGetter) *Middleware {
	return &Middleware{
		BaseHandler: base,
		verifier:    verifier,
		users:       users,
	}
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.WriteAppError(w, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeInvalidToken))
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.Logger.Warn("token verification failed", "error", err)
			m.WriteAppError(w, err)
			return
		}

		userID, err := UserIDFromClaims(claims)
		if err != nil {
			m.WriteAppError(w, err)
			return
		}

		actor, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			m.Logger.Warn("failed to resolve actor", "user_id", userID, "error", err)
			m.WriteAppError(w, internal.ErrInvalidToken)
			return
		}

		next.ServeHTTP(w, r.WithContext(user.ContextWith(r.Context(), actor)))
	})
}

// RequireAdmin gates routes to admins and superadmins. It must run after
// Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := user.FromContext(r.Context())
		if !ok {
			m.WriteAppError(w, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeInvalidToken))
			return
		}
		if !actor.IsAdmin() {
			m.WriteAppError(w, internal.ErrUnauthorizedAccess)
			return
		}
		next.ServeHTTP(w, r)
	})
}
