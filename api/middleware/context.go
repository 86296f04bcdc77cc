package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/shopora/shopora-backend/internal/orders"
	"github.com/shopora/shopora-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext reconstructs the caller identity seeded by Auth.
func ActorFromContext(ctx context.Context) orders.Actor {
	actor := orders.Actor{}
	if raw := UserIDFromContext(ctx); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.UserID = id
		}
	}
	if raw := RoleFromContext(ctx); raw != "" {
		if role, err := enums.ParseActorRole(raw); err == nil {
			actor.Role = role
		}
	}
	return actor
}

// WithActor injects a caller identity into the context. Used by tests and
// internal callers that bypass the HTTP auth layer.
func WithActor(ctx context.Context, actor orders.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, string(actor.Role))
}
