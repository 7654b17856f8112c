package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyActorId       = ContextKey("ActorId")
	ContextKeyActorName     = ContextKey("ActorName")
	ContextKeyWarehouseId   = ContextKey("WarehouseId")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyAuditMeta carries extra key/values to be attached to the audit
	// rows written for this request (e.g. retention parameters).
	ContextKeyAuditMeta = ContextKey("AuditMeta")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetMap(ctx context.Context, key ContextKey) (map[string]any, bool) {
	v, ok := ctx.Value(key).(map[string]any)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
