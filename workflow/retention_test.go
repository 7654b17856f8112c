package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestSweeper(t *testing.T, now time.Time) (*RetentionSweeper, *contingency.Store) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := contingency.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sel := &storage.Selector{
		Contingency: storage.NewContingency(store),
		State:       connectivity.NewState(log),
	}
	registry := models.DefaultRegistry()
	nilDB := func() *gorm.DB { return nil }
	gw := gateway.New(registry, sel, gateway.NewValidator(sel, nilDB), audit.NewLogger(sel, registry, log), nil, log)

	sweeper := NewRetentionSweeper(gw, config.DefaultRetentionWindow)
	sweeper.now = func() time.Time { return now }
	return sweeper, store
}

func TestSweep_DeletesOnlyOutsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sweeper, store := newTestSweeper(t, now)

	stamp := func(d time.Duration) string { return now.Add(-d).Format(time.RFC3339) }
	orders := []models.Row{
		{"id": "p1", "numero": "PO-001", "status": models.OrderStatusReceived, "received_at": stamp(25 * time.Hour)},
		{"id": "p2", "numero": "PO-002", "status": models.OrderStatusReceived, "received_at": stamp(23*time.Hour + 59*time.Minute)},
		{"id": "p3", "numero": "PO-003", "status": models.OrderStatusSent, "received_at": nil},
	}
	if err := store.WriteTable(models.TablePedidosCompra, orders); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	remaining, _ := store.ReadTable(models.TablePedidosCompra)
	if len(remaining) != 2 {
		t.Fatalf("expected 2 surviving orders, got %d", len(remaining))
	}
	for _, row := range remaining {
		if row.GetString("numero") == "PO-001" {
			t.Fatal("PO-001 should have been swept")
		}
	}
}

func TestSweep_ExactBoundaryIsKept(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sweeper, store := newTestSweeper(t, now)

	// received_at exactly at the cutoff is not strictly older than it.
	orders := []models.Row{
		{"id": "p1", "numero": "PO-001", "status": models.OrderStatusReceived,
			"received_at": now.Add(-24 * time.Hour).Format(time.RFC3339)},
	}
	if err := store.WriteTable(models.TablePedidosCompra, orders); err != nil {
		t.Fatalf("seed: %v", err)
	}

	deleted, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("deleted = %d, want 0", deleted)
	}
}

func TestSweep_AuditsDeletions(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	sweeper, store := newTestSweeper(t, now)

	orders := []models.Row{
		{"id": "p1", "numero": "PO-001", "status": models.OrderStatusReceived,
			"received_at": now.Add(-25 * time.Hour).Format(time.RFC3339)},
	}
	if err := store.WriteTable(models.TablePedidosCompra, orders); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	logs, _ := store.ReadTable(models.TableAuditLogs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(logs))
	}
	entry := logs[0]
	if entry.GetString("action") != models.AuditActionDelete ||
		entry.GetString("actor") != RetentionActor ||
		entry.GetString("entity") != models.TablePedidosCompra {
		t.Fatalf("unexpected audit row: %v", entry)
	}
	if entry.GetString("meta") == "" {
		t.Fatal("retention deletions must carry the window and cutoff in meta")
	}
}

func TestSweep_EmptyTableIsNoop(t *testing.T) {
	sweeper, _ := newTestSweeper(t, time.Now().UTC())
	deleted, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("deleted = %d, want 0", deleted)
	}
}
