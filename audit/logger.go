// Package audit builds and persists the append-only before/after change trail.
// Entries are written synchronously with the operation they describe but can
// never fail it: when the active backend rejects the batch it degrades to the
// contingency store, and a failure there is logged, not propagated.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	sel      *storage.Selector
	registry *models.Registry
	log      *logrus.Logger
}

func NewLogger(sel *storage.Selector, registry *models.Registry, log *logrus.Logger) *Logger {
	return &Logger{sel: sel, registry: registry, log: log}
}

// BuildEntry assembles one entry for a mutated row, pulling actor identity,
// correlation id and extra meta from the request context.
func BuildEntry(ctx context.Context, spec *models.TableSpec, action string, before, after models.Row) models.AuditLogEntry {
	entry := models.AuditLogEntry{
		ID:        uuid.NewString(),
		Module:    spec.Module,
		Entity:    spec.Name,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}

	identity := after
	if identity == nil {
		identity = before
	}
	if identity != nil {
		entry.EntityId = identity.GetString(spec.IdentityColumn)
		if wid := identity.GetString("almoxarifado_id"); wid != "" {
			entry.WarehouseId = wid
		}
	}
	if entry.WarehouseId == "" {
		if wid, ok := utils.GetWarehouseIdFromContext(ctx); ok {
			entry.WarehouseId = wid
		}
	}

	if actorId, ok := utils.GetActorIdFromContext(ctx); ok {
		entry.ActorId = actorId
	}
	if actorName, ok := utils.GetActorNameFromContext(ctx); ok {
		entry.Actor = actorName
	}

	entry.BeforeData = map[string]any(before)
	entry.AfterData = map[string]any(after)

	meta := map[string]any{}
	if extra, ok := utils.GetAuditMetaFromContext(ctx); ok {
		for k, v := range extra {
			meta[k] = v
		}
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		meta["correlation_id"] = cid
	}
	if len(meta) > 0 {
		entry.Meta = meta
	}
	return entry
}

// Record persists a batch of entries through the active backend, degrading to
// the contingency store when that fails. Errors never reach the caller.
func (l *Logger) Record(ctx context.Context, entries ...models.AuditLogEntry) {
	if len(entries) == 0 {
		return
	}
	spec, err := l.registry.Lookup(models.TableAuditLogs)
	if err != nil {
		config.LogError(l.log, "audit", "Record", "registry.Lookup", nil, err)
		return
	}

	rows := make([]models.Row, len(entries))
	for i, e := range entries {
		rows[i] = e.ToRow()
	}

	active := l.sel.Active()
	if _, err := active.Insert(ctx, spec, rows); err == nil {
		return
	} else {
		l.sel.State.ReportError(err)
		config.LogError(l.log, "audit", "Record", "insert via "+active.Name(), nil, err)
		if active.Name() == l.sel.Contingency.Name() {
			return
		}
	}

	// Degrade to the contingency file for this batch rather than losing it.
	if _, err := l.sel.Contingency.Insert(ctx, spec, rows); err != nil {
		config.LogError(l.log, "audit", "Record", "contingency fallback", nil, err)
	}
}
