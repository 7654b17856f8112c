// Package gateway is the whitelisted CRUD engine every table operation goes
// through: registry check, connectivity-state branch, uniqueness validation,
// storage mutation, audit write, broadcast. Direct storage access is not a
// supported entry point.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/broadcast"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"github.com/sirupsen/logrus"
)

// ListLimitCeiling is the hard maximum any single page may request.
const ListLimitCeiling = 1000

type Gateway struct {
	registry  *models.Registry
	sel       *storage.Selector
	validator *Validator
	audit     *audit.Logger
	hub       *broadcast.Hub
	log       *logrus.Logger
}

func New(registry *models.Registry, sel *storage.Selector, validator *Validator, auditLogger *audit.Logger, hub *broadcast.Hub, log *logrus.Logger) *Gateway {
	return &Gateway{
		registry:  registry,
		sel:       sel,
		validator: validator,
		audit:     auditLogger,
		hub:       hub,
		log:       log,
	}
}

func (g *Gateway) Registry() *models.Registry { return g.registry }

func (g *Gateway) Selector() *storage.Selector { return g.sel }

// List runs a whitelisted read. Identical filter/order/pagination semantics
// regardless of the active backend; that equivalence is the gateway's core
// contract.
func (g *Gateway) List(ctx context.Context, table string, q models.Query) ([]models.Row, error) {
	spec, err := g.registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	if err := g.validateQuery(spec, q); err != nil {
		return nil, err
	}
	q.Limit = clampLimit(q.Limit)

	backend := g.sel.Active()
	rows, err := backend.List(ctx, spec, q)
	if err != nil {
		g.sel.State.ReportError(err)
		return nil, err
	}
	return decodeRowsForRead(spec, rows), nil
}

func (g *Gateway) Count(ctx context.Context, table string, filters models.Filters) (int64, error) {
	spec, err := g.registry.Lookup(table)
	if err != nil {
		return 0, err
	}
	if err := g.validateFilters(spec, filters); err != nil {
		return 0, err
	}

	backend := g.sel.Active()
	count, err := backend.Count(ctx, spec, filters)
	if err != nil {
		g.sel.State.ReportError(err)
		return 0, err
	}
	return count, nil
}

// Insert writes one or more rows, rejecting uniqueness conflicts (including
// collisions inside the incoming batch) before anything reaches storage.
func (g *Gateway) Insert(ctx context.Context, table string, rows []models.Row) ([]models.Row, error) {
	spec, err := g.registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(spec); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %q: no rows given", table)
	}

	prepared := make([]models.Row, len(rows))
	for i, row := range rows {
		if err := g.validateColumns(spec, row); err != nil {
			return nil, err
		}
		prepared[i] = g.stampForInsert(spec, normalizeRowForWrite(spec, row))
	}

	if err := g.validator.Check(ctx, spec, prepared, nil); err != nil {
		g.sel.State.ReportError(err)
		return nil, err
	}

	backend := g.sel.Active()
	inserted, err := backend.Insert(ctx, spec, prepared)
	if err != nil {
		g.sel.State.ReportError(err)
		return nil, friendlyWriteError(spec, err)
	}

	g.recordAudit(ctx, spec, models.AuditActionCreate, nil, inserted...)
	g.publish(spec, models.AuditActionCreate, decodeRowsForRead(spec, inserted))
	return decodeRowsForRead(spec, inserted), nil
}

// Update patches every row matching the filters. Zero matches is a not-found,
// surfaced before any mutation.
func (g *Gateway) Update(ctx context.Context, table string, filters models.Filters, patch models.Row) ([]models.Row, error) {
	spec, err := g.registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(spec); err != nil {
		return nil, err
	}
	if err := g.validateFilters(spec, filters); err != nil {
		return nil, err
	}
	if err := g.validateColumns(spec, patch); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return nil, fmt.Errorf("update %q: empty patch", table)
	}

	normalized := normalizeRowForWrite(spec, patch)
	if spec.AllowsColumn("updated_at") {
		if _, set := normalized["updated_at"]; !set {
			normalized["updated_at"] = time.Now().UTC().Format(time.RFC3339)
		}
	}

	backend := g.sel.Active()
	matched, err := backend.List(ctx, spec, models.Query{Filters: filters})
	if err != nil {
		g.sel.State.ReportError(err)
		return nil, err
	}
	if len(matched) == 0 {
		return nil, utils.ErrRecordNotFound
	}

	// Validate the resulting rows, excluding the rows being rewritten.
	resulting := make([]models.Row, len(matched))
	excludeIds := make([]string, len(matched))
	for i, row := range matched {
		merged := row.Clone()
		for k, v := range normalized {
			merged[k] = v
		}
		resulting[i] = merged
		excludeIds[i] = row.GetString("id")
	}
	if err := g.validator.Check(ctx, spec, resulting, excludeIds); err != nil {
		g.sel.State.ReportError(err)
		return nil, err
	}

	changes, err := backend.Update(ctx, spec, filters, normalized)
	if err != nil {
		g.sel.State.ReportError(err)
		return nil, friendlyWriteError(spec, err)
	}
	if len(changes) == 0 {
		return nil, utils.ErrRecordNotFound
	}

	updated := make([]models.Row, len(changes))
	for i, ch := range changes {
		updated[i] = ch.After
	}
	g.recordAuditChanges(ctx, spec, changes)
	g.publish(spec, models.AuditActionUpdate, decodeRowsForRead(spec, updated))
	return decodeRowsForRead(spec, updated), nil
}

// Delete removes every row matching the filters. Zero matches is a not-found.
func (g *Gateway) Delete(ctx context.Context, table string, filters models.Filters) ([]models.Row, error) {
	spec, err := g.registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(spec); err != nil {
		return nil, err
	}
	if err := g.validateFilters(spec, filters); err != nil {
		return nil, err
	}

	backend := g.sel.Active()
	deleted, err := backend.Delete(ctx, spec, filters)
	if err != nil {
		g.sel.State.ReportError(err)
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, utils.ErrRecordNotFound
	}

	g.recordAudit(ctx, spec, models.AuditActionDelete, deleted)
	g.publish(spec, models.AuditActionDelete, decodeRowsForRead(spec, deleted))
	return decodeRowsForRead(spec, deleted), nil
}

func (g *Gateway) validateQuery(spec *models.TableSpec, q models.Query) error {
	if err := g.validateFilters(spec, q.Filters); err != nil {
		return err
	}
	if q.OrderBy != "" && !spec.AllowsColumn(q.OrderBy) {
		return fmt.Errorf("%w: %s.%s", utils.ErrColumnNotAllowed, spec.Name, q.OrderBy)
	}
	return nil
}

func (g *Gateway) validateFilters(spec *models.TableSpec, filters models.Filters) error {
	for key := range filters {
		column, _ := models.SplitFilterKey(key)
		if !spec.AllowsColumn(column) {
			return fmt.Errorf("%w: %s.%s", utils.ErrColumnNotAllowed, spec.Name, column)
		}
	}
	return nil
}

func (g *Gateway) validateColumns(spec *models.TableSpec, row models.Row) error {
	for column := range row {
		if !spec.AllowsColumn(column) {
			return fmt.Errorf("%w: %s.%s", utils.ErrColumnNotAllowed, spec.Name, column)
		}
	}
	return nil
}

// stampForInsert fills the application-generated id and creation timestamp.
// Ids are uuids on both backends so failover never changes their shape.
func (g *Gateway) stampForInsert(spec *models.TableSpec, row models.Row) models.Row {
	if spec.AllowsColumn("id") && row.GetString("id") == "" {
		row["id"] = uuid.NewString()
	}
	if spec.AllowsColumn("created_at") {
		if _, set := row["created_at"]; !set {
			row["created_at"] = time.Now().UTC().Format(time.RFC3339)
		}
	}
	return row
}

func (g *Gateway) recordAudit(ctx context.Context, spec *models.TableSpec, action string, before []models.Row, after ...models.Row) {
	if !g.shouldAudit(spec) {
		return
	}
	var entries []models.AuditLogEntry
	switch action {
	case models.AuditActionCreate:
		for _, row := range after {
			entries = append(entries, audit.BuildEntry(ctx, spec, action, nil, row))
		}
	case models.AuditActionDelete:
		for _, row := range before {
			entries = append(entries, audit.BuildEntry(ctx, spec, action, row, nil))
		}
	}
	g.audit.Record(ctx, entries...)
}

func (g *Gateway) recordAuditChanges(ctx context.Context, spec *models.TableSpec, changes []models.Change) {
	if !g.shouldAudit(spec) {
		return
	}
	entries := make([]models.AuditLogEntry, len(changes))
	for i, ch := range changes {
		entries[i] = audit.BuildEntry(ctx, spec, models.AuditActionUpdate, ch.Before, ch.After)
	}
	g.audit.Record(ctx, entries...)
}

// shouldAudit excludes the audit table itself and tables already covered by a
// database-side trigger while the relational backend is active.
func (g *Gateway) shouldAudit(spec *models.TableSpec) bool {
	if spec.Name == models.TableAuditLogs {
		return false
	}
	if spec.AuditByDBTrigger && g.sel.State.Connected() {
		return false
	}
	return true
}

func (g *Gateway) publish(spec *models.TableSpec, action string, rows []models.Row) {
	if g.hub == nil || !spec.Broadcast {
		return
	}
	for _, row := range rows {
		g.hub.Publish(broadcast.Event{Table: spec.Name, Action: action, Data: row})
	}
}

func checkWritable(spec *models.TableSpec) error {
	if spec.WriteRestricted {
		return &utils.WriteRestrictedError{Table: spec.Name, Canonical: spec.CanonicalTable}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit > ListLimitCeiling {
		return ListLimitCeiling
	}
	return limit
}

// friendlyWriteError folds the storage engine's own uniqueness violation (the
// last-resort guard when a pre-check raced a concurrent insert) into the same
// conflict shape the validator produces.
func friendlyWriteError(spec *models.TableSpec, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return &utils.ConflictError{
			Table:  spec.Name,
			Column: spec.IdentityColumn,
			Value:  myErr.Message,
		}
	}
	return err
}
