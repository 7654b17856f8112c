package storage

import (
	"testing"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
)

func TestMatchRow(t *testing.T) {
	row := models.Row{
		"codigo":          "SKU-100",
		"descricao":       "Parafuso Sextavado M8",
		"quantidade":      "15",
		"almoxarifado_id": "W1",
		"received_at":     nil,
	}

	tests := []struct {
		name    string
		filters models.Filters
		want    bool
	}{
		{"empty filters match", models.Filters{}, true},
		{"equality hit", models.Filters{"codigo": "SKU-100"}, true},
		{"equality miss", models.Filters{"codigo": "SKU-999"}, false},
		{"numeric string equals number", models.Filters{"quantidade": 15}, true},
		{"nil matches nil", models.Filters{"received_at": nil}, true},
		{"ilike case-insensitive substring", models.Filters{"descricao__ilike": "sextavado"}, true},
		{"ilike miss", models.Filters{"descricao__ilike": "porca"}, false},
		{"ilike on nil column", models.Filters{"received_at__ilike": "2025"}, false},
		{"ilike wildcard chars are literal", models.Filters{"descricao__ilike": "P%rafuso"}, false},
		{"ilike underscore is literal", models.Filters{"codigo__ilike": "SKU_100"}, false},
		{"ilike literal hit with symbols", models.Filters{"codigo__ilike": "ku-10"}, true},
		{"two filters conjunction", models.Filters{"codigo": "SKU-100", "almoxarifado_id": "W2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchRow(row, tt.filters); got != tt.want {
				t.Fatalf("MatchRow(%v) = %v, want %v", tt.filters, got, tt.want)
			}
		})
	}
}

func TestApplyQuery_OrderAndPagination(t *testing.T) {
	rows := []models.Row{
		{"id": "a", "quantidade": "10"},
		{"id": "b", "quantidade": "9"},
		{"id": "c", "quantidade": "101"},
		{"id": "d", "quantidade": nil},
	}

	got := ApplyQuery(rows, models.Query{OrderBy: "quantidade"})
	wantOrder := []string{"d", "b", "a", "c"}
	for i, id := range wantOrder {
		if got[i].GetString("id") != id {
			t.Fatalf("numeric-aware asc order wrong at %d: got %v", i, ids(got))
		}
	}

	got = ApplyQuery(rows, models.Query{OrderBy: "quantidade", Desc: true})
	if got[0].GetString("id") != "c" {
		t.Fatalf("desc order wrong: got %v", ids(got))
	}

	got = ApplyQuery(rows, models.Query{OrderBy: "quantidade", Offset: 1, Limit: 2})
	if len(got) != 2 || got[0].GetString("id") != "b" || got[1].GetString("id") != "a" {
		t.Fatalf("offset+limit wrong: got %v", ids(got))
	}

	got = ApplyQuery(rows, models.Query{Offset: 10})
	if len(got) != 0 {
		t.Fatalf("offset past end must be empty, got %v", ids(got))
	}
}

func TestApplyQuery_FilterThenSort(t *testing.T) {
	rows := []models.Row{
		{"id": "a", "status": "recebido", "numero": "PO-003"},
		{"id": "b", "status": "enviado", "numero": "PO-001"},
		{"id": "c", "status": "recebido", "numero": "PO-002"},
	}
	got := ApplyQuery(rows, models.Query{
		Filters: models.Filters{"status": "recebido"},
		OrderBy: "numero",
	})
	if len(got) != 2 || got[0].GetString("id") != "c" || got[1].GetString("id") != "a" {
		t.Fatalf("filter+sort wrong: got %v", ids(got))
	}
}

func ids(rows []models.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.GetString("id")
	}
	return out
}
