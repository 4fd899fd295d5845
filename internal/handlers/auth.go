package handlers

import "context"

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
)

// WithUser stores the authenticated caller on the request context.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// UserID returns the authenticated caller, or "" when the route is public.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}
