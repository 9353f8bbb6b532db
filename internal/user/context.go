package user

import "context"

type ctxKey string

const actorContextKey ctxKey = "actor"

// ContextWith stores the authenticated actor for downstream handlers.
func ContextWith(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, actorContextKey, u)
}

// FromContext returns the authenticated actor, if one was resolved.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(actorContextKey).(*User)
	return u, ok
}
