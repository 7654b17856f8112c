// Package workflow holds the multi-table business transactions that cannot be
// expressed as a single gateway CRUD call. Receipt finalization is the main
// one: purchase order status flip, stock increments and movement rows applied
// together, on whichever storage mode is active.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/broadcast"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MovementTypeEntry = "entrada"

// StockDelta is one stock increment applied while finalizing a receipt.
type StockDelta struct {
	Codigo         string          `json:"codigo"`
	AlmoxarifadoId string          `json:"almoxarifado_id"`
	Quantidade     decimal.Decimal `json:"quantidade"`
	Anterior       decimal.Decimal `json:"quantidade_anterior"`
	Posterior      decimal.Decimal `json:"quantidade_posterior"`
}

// ReceiptResult is what finalization committed: the updated order, the stock
// deltas and the movement rows created for them.
type ReceiptResult struct {
	Pedido        models.Row   `json:"pedido"`
	Deltas        []StockDelta `json:"deltas"`
	Movimentacoes []models.Row `json:"movimentacoes"`
}

type orderLine struct {
	Codigo     string
	Quantidade decimal.Decimal
}

// ReceiptLine is one received line supplied by the caller. QuantidadeRecebida
// accepts a number or a numeric string.
type ReceiptLine struct {
	Codigo             string `json:"codigo"`
	QuantidadeRecebida any    `json:"quantidade_recebida"`
}

// ReceiptRequest optionally overrides what the order document says: the target
// warehouse and the received lines. Empty fields fall back to the order.
type ReceiptRequest struct {
	AlmoxarifadoId string        `json:"almoxarifado_id"`
	Itens          []ReceiptLine `json:"itens"`
}

// ReceiptFinalizer moves a purchase order from enviado to recebido. Relational
// mode runs inside one database transaction with row locks; contingency mode
// validates every line against the snapshots before rewriting any file.
type ReceiptFinalizer struct {
	sel    *storage.Selector
	db     func() *gorm.DB
	store  *contingency.Store
	reg    *models.Registry
	audit  *audit.Logger
	hub    *broadcast.Hub
	locker *redislock.Client
	log    *logrus.Logger
}

func NewReceiptFinalizer(sel *storage.Selector, db func() *gorm.DB, store *contingency.Store, reg *models.Registry, auditLogger *audit.Logger, hub *broadcast.Hub, locker *redislock.Client) *ReceiptFinalizer {
	return &ReceiptFinalizer{
		sel:    sel,
		db:     db,
		store:  store,
		reg:    reg,
		audit:  auditLogger,
		hub:    hub,
		locker: locker,
		log:    config.GetLogger(),
	}
}

// Finalize applies the receipt for the order with the given numero. Exactly
// once: any status other than enviado on entry is a conflict, including a
// retry of an already finalized order. A nil req finalizes exactly what the
// order document lists.
func (r *ReceiptFinalizer) Finalize(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, error) {
	if r.locker != nil {
		lock, err := r.locker.Obtain(ctx, "receipt:"+numero, 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
		})
		switch {
		case err == nil:
			defer lock.Release(ctx)
		case errors.Is(err, redislock.ErrNotObtained):
			return nil, &utils.StatusConflictError{OrderNumber: numero, Expected: models.OrderStatusSent, Actual: "em finalizacao"}
		default:
			// Redis down is not a reason to refuse the receipt; the database
			// row lock (or the single-writer contingency store) still guards it.
			r.log.WithError(err).Warn("receipt lock unavailable, proceeding without it")
		}
	}

	var (
		result  *ReceiptResult
		outcome strategyOutcome
		err     error
	)
	for _, strat := range r.strategies() {
		result, outcome, err = strat.run(ctx, numero, req)
		if outcome == strategyNotApplicable {
			continue
		}
		if outcome == strategyFailed {
			r.log.WithField("strategy", strat.name).WithField("numero", numero).
				WithError(err).Debug("receipt finalization failed")
		}
		break
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("no storage mode could finalize the receipt")
	}

	r.broadcastResult(result)
	return result, nil
}

type strategyOutcome int

const (
	strategyApplied strategyOutcome = iota
	strategyNotApplicable
	strategyFailed
)

type receiptStrategy struct {
	name string
	run  func(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, strategyOutcome, error)
}

// strategies is the fallback order: relational when connected, then the
// contingency snapshots. Each strategy reports applied, not-applicable or a
// hard failure; only not-applicable moves on to the next one.
func (r *ReceiptFinalizer) strategies() []receiptStrategy {
	return []receiptStrategy{
		{name: "relational", run: r.tryRelational},
		{name: "contingency", run: r.tryContingency},
	}
}

func (r *ReceiptFinalizer) tryRelational(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, strategyOutcome, error) {
	if !r.sel.State.Connected() || r.db == nil {
		return nil, strategyNotApplicable, nil
	}
	result, err := r.finalizeRelational(ctx, numero, req)
	if err != nil {
		if r.sel.State.ReportError(err) {
			// Connectivity died mid-flight; the transaction rolled back, so
			// the contingency snapshots are still consistent.
			r.log.WithField("numero", numero).Warn("receipt falling back to contingency mode")
			return nil, strategyNotApplicable, nil
		}
		return nil, strategyFailed, err
	}
	return result, strategyApplied, nil
}

func (r *ReceiptFinalizer) tryContingency(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, strategyOutcome, error) {
	result, err := r.finalizeContingency(ctx, numero, req)
	if err != nil {
		return nil, strategyFailed, err
	}
	return result, strategyApplied, nil
}

func (r *ReceiptFinalizer) finalizeRelational(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, error) {
	var result *ReceiptResult
	err := r.db().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rawOrders []map[string]interface{}
		if err := tx.Table(models.TablePedidosCompra).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("`numero` = ?", numero).
			Find(&rawOrders).Error; err != nil {
			return err
		}
		if len(rawOrders) == 0 {
			return fmt.Errorf("%w: pedido %s", utils.ErrRecordNotFound, numero)
		}
		before := storage.NormalizeDBRow(rawOrders[0])
		if status := before.GetString("status"); status != models.OrderStatusSent {
			return &utils.StatusConflictError{OrderNumber: numero, Expected: models.OrderStatusSent, Actual: status}
		}

		lines, err := resolveLines(req, before["itens"])
		if err != nil {
			return err
		}
		warehouse := resolveWarehouse(req, before)
		now := time.Now().UTC().Format(time.RFC3339)

		var deltas []StockDelta
		var movRows []models.Row
		for _, line := range lines {
			stock, err := lockStockRow(tx, line.Codigo, warehouse)
			if err != nil {
				return err
			}
			prev, err := parseDecimal(stock["quantidade"])
			if err != nil {
				return fmt.Errorf("estoque %s: %w", line.Codigo, err)
			}
			next := prev.Add(line.Quantidade)
			if err := tx.Table(models.TableEstoque).
				Where("`id` = ?", stock.GetString("id")).
				Updates(map[string]interface{}{"quantidade": next.String(), "updated_at": now}).Error; err != nil {
				return err
			}

			scope := stock.GetString("almoxarifado_id")
			mov := movementRow(before, line, scope, prev, next, now)
			if err := tx.Table(models.TableMovimentacoes).Create(map[string]interface{}(mov)).Error; err != nil {
				return err
			}

			deltas = append(deltas, StockDelta{
				Codigo:         line.Codigo,
				AlmoxarifadoId: scope,
				Quantidade:     line.Quantidade,
				Anterior:       prev,
				Posterior:      next,
			})
			movRows = append(movRows, mov)
		}

		if err := tx.Table(models.TablePedidosCompra).
			Where("`id` = ?", before.GetString("id")).
			Updates(map[string]interface{}{"status": models.OrderStatusReceived, "received_at": now}).Error; err != nil {
			return err
		}
		after := before.Clone()
		after["status"] = models.OrderStatusReceived
		after["received_at"] = now

		// Audit inside the transaction so a rollback takes the trail with it.
		// Movement rows are covered by the database trigger here.
		for _, entry := range r.auditEntries(ctx, numero, before, after, deltas) {
			if err := tx.Table(models.TableAuditLogs).Create(map[string]interface{}(entry.ToRow())).Error; err != nil {
				return err
			}
		}

		result = &ReceiptResult{Pedido: after, Deltas: deltas, Movimentacoes: movRows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func lockStockRow(tx *gorm.DB, codigo, warehouse string) (models.Row, error) {
	for _, scope := range warehouseScopes(warehouse) {
		var raw []map[string]interface{}
		if err := tx.Table(models.TableEstoque).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("`codigo` = ? AND `almoxarifado_id` = ?", codigo, scope).
			Find(&raw).Error; err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			return storage.NormalizeDBRow(raw[0]), nil
		}
	}
	return nil, fmt.Errorf("%w: estoque %s", utils.ErrRecordNotFound, codigo)
}

// finalizeContingency applies the same transition on the JSON snapshots. All
// validation happens before the first rewrite; the status flip is written
// first so an interrupted run can never apply the stock twice.
func (r *ReceiptFinalizer) finalizeContingency(ctx context.Context, numero string, req *ReceiptRequest) (*ReceiptResult, error) {
	pedidos, err := r.store.ReadTable(models.TablePedidosCompra)
	if err != nil {
		return nil, err
	}
	orderIdx := -1
	for i, row := range pedidos {
		if row.GetString("numero") == numero {
			orderIdx = i
			break
		}
	}
	if orderIdx < 0 {
		return nil, fmt.Errorf("%w: pedido %s", utils.ErrRecordNotFound, numero)
	}
	before := pedidos[orderIdx].Clone()
	if status := before.GetString("status"); status != models.OrderStatusSent {
		return nil, &utils.StatusConflictError{OrderNumber: numero, Expected: models.OrderStatusSent, Actual: status}
	}

	lines, err := resolveLines(req, before["itens"])
	if err != nil {
		return nil, err
	}
	warehouse := resolveWarehouse(req, before)
	now := time.Now().UTC().Format(time.RFC3339)

	estoque, err := r.store.ReadTable(models.TableEstoque)
	if err != nil {
		return nil, err
	}

	type pendingUpdate struct {
		idx  int
		next decimal.Decimal
	}
	var updates []pendingUpdate
	var deltas []StockDelta
	var movRows []models.Row
	for _, line := range lines {
		idx := findStockRow(estoque, line.Codigo, warehouse)
		if idx < 0 {
			return nil, fmt.Errorf("%w: estoque %s", utils.ErrRecordNotFound, line.Codigo)
		}
		prev, err := parseDecimal(estoque[idx]["quantidade"])
		if err != nil {
			return nil, fmt.Errorf("estoque %s: %w", line.Codigo, err)
		}
		next := prev.Add(line.Quantidade)
		updates = append(updates, pendingUpdate{idx: idx, next: next})

		scope := estoque[idx].GetString("almoxarifado_id")
		deltas = append(deltas, StockDelta{
			Codigo:         line.Codigo,
			AlmoxarifadoId: scope,
			Quantidade:     line.Quantidade,
			Anterior:       prev,
			Posterior:      next,
		})
		movRows = append(movRows, movementRow(before, line, scope, prev, next, now))
	}

	after := before.Clone()
	after["status"] = models.OrderStatusReceived
	after["received_at"] = now
	pedidos[orderIdx] = after
	if err := r.store.WriteTable(models.TablePedidosCompra, pedidos); err != nil {
		return nil, err
	}

	for _, u := range updates {
		estoque[u.idx]["quantidade"] = u.next.String()
		estoque[u.idx]["updated_at"] = now
	}
	if err := r.store.WriteTable(models.TableEstoque, estoque); err != nil {
		return nil, err
	}

	movs, err := r.store.ReadTable(models.TableMovimentacoes)
	if err != nil {
		return nil, err
	}
	if err := r.store.WriteTable(models.TableMovimentacoes, append(movs, movRows...)); err != nil {
		return nil, err
	}

	entries := r.auditEntries(ctx, numero, before, after, deltas)
	// No database trigger in this mode; audit the movement rows in-app.
	if movSpec, err := r.reg.Lookup(models.TableMovimentacoes); err == nil {
		for _, mov := range movRows {
			entries = append(entries, audit.BuildEntry(ctx, movSpec, models.AuditActionCreate, nil, mov))
		}
	}
	r.audit.Record(ctx, entries...)

	return &ReceiptResult{Pedido: after, Deltas: deltas, Movimentacoes: movRows}, nil
}

func (r *ReceiptFinalizer) auditEntries(ctx context.Context, numero string, before, after models.Row, deltas []StockDelta) []models.AuditLogEntry {
	var entries []models.AuditLogEntry

	if orderSpec, err := r.reg.Lookup(models.TablePedidosCompra); err == nil {
		entry := audit.BuildEntry(ctx, orderSpec, models.AuditActionReceiptFinalize, before, after)
		if entry.Meta == nil {
			entry.Meta = map[string]any{}
		}
		entry.Meta["numero"] = numero
		entry.Meta["linhas"] = len(deltas)
		entries = append(entries, entry)
	}

	stockSpec, err := r.reg.Lookup(models.TableEstoque)
	if err != nil {
		return entries
	}
	for _, d := range deltas {
		entry := audit.BuildEntry(ctx, stockSpec, models.AuditActionInventoryIncrement,
			models.Row{"codigo": d.Codigo, "almoxarifado_id": d.AlmoxarifadoId, "quantidade": d.Anterior.String()},
			models.Row{"codigo": d.Codigo, "almoxarifado_id": d.AlmoxarifadoId, "quantidade": d.Posterior.String()})
		if entry.Meta == nil {
			entry.Meta = map[string]any{}
		}
		entry.Meta["pedido_numero"] = numero
		entries = append(entries, entry)
	}
	return entries
}

func (r *ReceiptFinalizer) broadcastResult(result *ReceiptResult) {
	if r.hub == nil {
		return
	}
	r.hub.Publish(broadcast.Event{Table: models.TablePedidosCompra, Action: models.AuditActionUpdate, Data: result.Pedido})
	for _, mov := range result.Movimentacoes {
		r.hub.Publish(broadcast.Event{Table: models.TableMovimentacoes, Action: models.AuditActionCreate, Data: mov})
	}
	for _, d := range result.Deltas {
		r.hub.Publish(broadcast.Event{Table: models.TableEstoque, Action: models.AuditActionUpdate, Data: models.Row{
			"codigo":          d.Codigo,
			"almoxarifado_id": d.AlmoxarifadoId,
			"quantidade":      d.Posterior.String(),
		}})
	}
}

func movementRow(pedido models.Row, line orderLine, scope string, prev, next decimal.Decimal, now string) models.Row {
	meta, _ := json.Marshal(map[string]any{"pedido_numero": pedido.GetString("numero")})
	return models.Row{
		"id":                   uuid.NewString(),
		"tipo":                 MovementTypeEntry,
		"pedido_id":            pedido.GetString("id"),
		"codigo":               line.Codigo,
		"almoxarifado_id":      scope,
		"quantidade":           line.Quantidade.String(),
		"quantidade_anterior":  prev.String(),
		"quantidade_posterior": next.String(),
		"meta":                 string(meta),
		"created_at":           now,
	}
}

// warehouseScopes is the stock lookup order: the order's own warehouse first,
// then the shared GERAL scope.
func warehouseScopes(warehouse string) []string {
	if warehouse == "" || warehouse == models.GlobalWarehouseId {
		return []string{models.GlobalWarehouseId}
	}
	return []string{warehouse, models.GlobalWarehouseId}
}

func findStockRow(rows []models.Row, codigo, warehouse string) int {
	for _, scope := range warehouseScopes(warehouse) {
		for i, row := range rows {
			if row.GetString("codigo") == codigo && row.GetString("almoxarifado_id") == scope {
				return i
			}
		}
	}
	return -1
}

// resolveLines picks the received lines: the caller's override when present,
// otherwise the itens document stored on the order.
func resolveLines(req *ReceiptRequest, itens any) ([]orderLine, error) {
	if req == nil || len(req.Itens) == 0 {
		return decodeOrderLines(itens)
	}
	raw := make([]map[string]any, len(req.Itens))
	for i, line := range req.Itens {
		raw[i] = map[string]any{"codigo": line.Codigo, "quantidade": line.QuantidadeRecebida}
	}
	return collapseLines(raw)
}

func resolveWarehouse(req *ReceiptRequest, pedido models.Row) string {
	if req != nil && req.AlmoxarifadoId != "" {
		return req.AlmoxarifadoId
	}
	return pedido.GetString("almoxarifado_id")
}

// decodeOrderLines parses the itens document and collapses duplicate codigos
// into one line by summing their quantities.
func decodeOrderLines(itens any) ([]orderLine, error) {
	var raw []map[string]any
	switch v := itens.(type) {
	case nil:
		return nil, errors.New("pedido has no itens")
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, fmt.Errorf("parse itens: %w", err)
		}
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.New("parse itens: line is not an object")
			}
			raw = append(raw, m)
		}
	default:
		return nil, fmt.Errorf("parse itens: unsupported value %T", itens)
	}
	if len(raw) == 0 {
		return nil, errors.New("pedido has no itens")
	}
	return collapseLines(raw)
}

func collapseLines(raw []map[string]any) ([]orderLine, error) {
	if len(raw) == 0 {
		return nil, errors.New("pedido has no itens")
	}
	totals := map[string]decimal.Decimal{}
	var order []string
	for _, item := range raw {
		codigo, _ := item["codigo"].(string)
		if codigo == "" {
			return nil, errors.New("parse itens: line without codigo")
		}
		qty, err := parseDecimal(item["quantidade"])
		if err != nil {
			return nil, fmt.Errorf("parse itens %s: %w", codigo, err)
		}
		if qty.Sign() <= 0 {
			return nil, fmt.Errorf("parse itens %s: non-positive quantidade", codigo)
		}
		if _, seen := totals[codigo]; !seen {
			order = append(order, codigo)
		}
		totals[codigo] = totals[codigo].Add(qty)
	}

	lines := make([]orderLine, len(order))
	for i, codigo := range order {
		lines[i] = orderLine{Codigo: codigo, Quantidade: totals[codigo]}
	}
	return lines, nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		if t == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(t)
	default:
		return decimal.Zero, fmt.Errorf("not a numeric value: %T", v)
	}
}
