package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Parity against a real MySQL server. Gated: run with
//
//	INTEGRATION_TESTS=1 MYSQL_TEST_DSN="user:pass@tcp(127.0.0.1:3306)/gestao_estoque_test?parseTime=true" go test ./storage/
func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run MySQL parity tests")
	}
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(127.0.0.1:3306)/gestao_estoque_test?parseTime=true"
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	return db
}

func TestListParity_Integration(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	if err := db.Exec("CREATE TABLE IF NOT EXISTS `veiculos` (" +
		"`id` varchar(36) PRIMARY KEY, `placa` varchar(16), `modelo` varchar(64), " +
		"`marca` varchar(64), `ano` int, `ativo` tinyint(1), " +
		"`created_at` varchar(32), `updated_at` varchar(32))").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Exec("DROP TABLE `veiculos`") })
	if err := db.Exec("DELETE FROM `veiculos`").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	store, err := contingency.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	relational := NewRelational(db)
	fileBacked := NewContingency(store)
	registry := models.DefaultRegistry()
	spec, err := registry.Lookup(models.TableVeiculos)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	fixture := []models.Row{
		{"id": "v1", "placa": "ABC1D23", "modelo": "Sprinter 310", "marca": "Mercedes", "ano": 2019, "ativo": true},
		{"id": "v2", "placa": "DEF4G56", "modelo": "Daily 35S14", "marca": "Iveco", "ano": 2021, "ativo": true},
		{"id": "v3", "placa": "GHI7J89", "modelo": "Sprinter 415", "marca": "Mercedes", "ano": 2015, "ativo": false},
		{"id": "v4", "placa": "JKL0M12", "modelo": "HR 2.5", "marca": nil, "ano": 2021, "ativo": true},
	}
	if _, err := relational.Insert(ctx, spec, fixture); err != nil {
		t.Fatalf("relational seed: %v", err)
	}
	if _, err := fileBacked.Insert(ctx, spec, fixture); err != nil {
		t.Fatalf("contingency seed: %v", err)
	}

	queries := []struct {
		name string
		q    models.Query
	}{
		{"unfiltered", models.Query{}},
		{"equality", models.Query{Filters: models.Filters{"marca": "Mercedes"}}},
		{"equality bool", models.Query{Filters: models.Filters{"ativo": true}}},
		{"nil filter", models.Query{Filters: models.Filters{"marca": nil}}},
		{"ilike", models.Query{Filters: models.Filters{"modelo__ilike": "sprinter"}}},
		{"ilike literal percent", models.Query{Filters: models.Filters{"modelo__ilike": "35%14"}}},
		{"ordered", models.Query{OrderBy: "ano", Desc: true}},
		{"paginated", models.Query{OrderBy: "placa", Limit: 2, Offset: 1}},
		{"offset without limit", models.Query{OrderBy: "placa", Offset: 2}},
		{"conjunction", models.Query{Filters: models.Filters{"ativo": true, "ano": 2021}}},
	}

	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			fromDB, err := relational.List(ctx, spec, tt.q)
			if err != nil {
				t.Fatalf("relational List: %v", err)
			}
			fromFile, err := fileBacked.List(ctx, spec, tt.q)
			if err != nil {
				t.Fatalf("contingency List: %v", err)
			}
			if got, want := idSet(fromDB), idSet(fromFile); got != want {
				t.Fatalf("modes diverge: relational %s vs contingency %s", got, want)
			}

			dbCount, err := relational.Count(ctx, spec, tt.q.Filters)
			if err != nil {
				t.Fatalf("relational Count: %v", err)
			}
			fileCount, err := fileBacked.Count(ctx, spec, tt.q.Filters)
			if err != nil {
				t.Fatalf("contingency Count: %v", err)
			}
			if dbCount != fileCount {
				t.Fatalf("counts diverge: %d vs %d", dbCount, fileCount)
			}
		})
	}
}

func idSet(rows []models.Row) string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.GetString("id")
	}
	sort.Strings(ids)
	return fmt.Sprint(ids)
}
