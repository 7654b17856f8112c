package utils

import (
	"context"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyWarehouseId   = appctx.ContextKeyWarehouseId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyAuditMeta     = appctx.ContextKeyAuditMeta
)

func GetActorIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetWarehouseIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyWarehouseId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetAuditMetaFromContext(ctx context.Context) (map[string]any, bool) {
	return appctx.GetMap(ctx, ContextKeyAuditMeta)
}

func SetActorIdInContext(ctx context.Context, actorId string) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

func SetWarehouseIdInContext(ctx context.Context, warehouseId string) context.Context {
	return appctx.Set(ctx, ContextKeyWarehouseId, warehouseId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetAuditMetaInContext(ctx context.Context, meta map[string]any) context.Context {
	return appctx.Set(ctx, ContextKeyAuditMeta, meta)
}
