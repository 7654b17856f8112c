// seed-admin creates or resets the admin user through the gateway, so the
// seeded row exists on whichever storage mode is active and the run leaves an
// audit trail.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

const (
	adminEmail = "admin@gestao-estoque.local"
	adminName  = "Administrador"
)

func main() {
	password := flag.String("password", "", "Required: admin password")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "--password is required")
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

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	ctx := utils.SetActorNameInContext(context.Background(), "seed-admin")

	existing, err := gw.List(ctx, models.TableUsuarios, models.Query{
		Filters: models.Filters{"email": adminEmail},
		Limit:   1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup admin: %v\n", err)
		os.Exit(1)
	}

	if len(existing) == 0 {
		_, err = gw.Insert(ctx, models.TableUsuarios, []models.Row{{
			"nome":       adminName,
			"email":      adminEmail,
			"senha_hash": string(hashed),
			"role":       "admin",
			"ativo":      true,
		}})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (mode=%s)\n", adminEmail, sel.ModeName())
		return
	}

	_, err = gw.Update(ctx, models.TableUsuarios, models.Filters{"email": adminEmail}, models.Row{
		"senha_hash": string(hashed),
		"role":       "admin",
		"ativo":      true,
	})
	if err != nil && !errors.Is(err, utils.ErrRecordNotFound) {
		fmt.Fprintf(os.Stderr, "update admin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("updated admin user %q (mode=%s)\n", adminEmail, sel.ModeName())
}
