// Manual retention pass: deletes purchase orders received more than the
// retention window ago. Dry-run by default; the server runs the same sweep on
// a timer, this tool exists for backfills and for running with a custom window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/workflow"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "List expired orders only (no writes)")
	confirm := flag.String("confirm", "", "Type DELETE to proceed when dry-run=false")
	windowHours := flag.Int("window-hours", 0, "Override the retention window in hours (default from env)")
	flag.Parse()

	if !*dryRun && strings.TrimSpace(*confirm) != "DELETE" {
		fmt.Fprintln(os.Stderr, "set --confirm=DELETE to proceed")
		os.Exit(1)
	}

	logger := config.GetLogger()
	store, err := contingency.NewStore(config.ContingencyDir(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "contingency store: %v\n", err)
		os.Exit(1)
	}

	state := connectivity.NewState(logger)
	sel := &storage.Selector{
		Contingency: storage.NewContingency(store),
		State:       state,
	}
	if err := config.ConnectDatabase(); err != nil {
		state.SetDisconnected(err.Error())
	} else {
		sel.Relational = storage.NewRelational(config.GetDB())
	}

	registry := models.DefaultRegistry()
	gw := gateway.New(registry, sel, gateway.NewValidator(sel, config.GetDB), audit.NewLogger(sel, registry, logger), nil, logger)

	window := config.RetentionWindow()
	if *windowHours > 0 {
		window = time.Duration(*windowHours) * time.Hour
	}
	cutoff := time.Now().UTC().Add(-window)

	ctx := context.Background()
	rows, err := gw.List(ctx, models.TablePedidosCompra, models.Query{
		Filters: models.Filters{"status": models.OrderStatusReceived},
		OrderBy: "received_at",
		Limit:   gateway.ListLimitCeiling,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "list orders: %v\n", err)
		os.Exit(1)
	}

	expired := 0
	for _, row := range rows {
		receivedAt := row.GetString("received_at")
		t, err := time.Parse(time.RFC3339, receivedAt)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		expired++
		fmt.Printf("expired: numero=%s received_at=%s\n", row.GetString("numero"), receivedAt)
	}
	fmt.Printf("mode=%s window=%s cutoff=%s expired=%d\n", sel.ModeName(), window, cutoff.Format(time.RFC3339), expired)

	if *dryRun {
		return
	}

	sweeper := workflow.NewRetentionSweeper(gw, window)
	deleted, err := sweeper.Sweep(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted=%d\n", deleted)
}
