package middleware

import "context"

type contextKey string

const (
	ctxOwnerID   contextKey = "owner_id"
	ctxOwnerKind contextKey = "owner_kind"
)

// Owner kinds carried in the request context.
const (
	OwnerKindUser  = "user"
	OwnerKindGuest = "guest"
)

func OwnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerID).(string); ok {
		return v
	}
	return ""
}

func OwnerKindFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOwnerKind).(string); ok {
		return v
	}
	return ""
}

// WithOwner injects the resolved cart owner into the context.
func WithOwner(ctx context.Context, kind, ownerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxOwnerKind, kind)
	return context.WithValue(ctx, ctxOwnerID, ownerID)
}
