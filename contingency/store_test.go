package contingency

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	s, err := NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestReadTable_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.ReadTable("estoque")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty table, got %d rows", len(rows))
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	in := []models.Row{
		{"id": "1", "codigo": "SKU-100", "quantidade": "5"},
		{"id": "2", "codigo": "SKU-200", "quantidade": "3"},
	}
	if err := s.WriteTable("estoque", in); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	rows, err := s.ReadTable("estoque")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].GetString("codigo") != "SKU-100" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}

	// No temp file may survive a successful write.
	if _, err := os.Stat(filepath.Join(s.Dir(), "estoque.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestReadTable_ReturnsCopies(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteTable("estoque", []models.Row{{"id": "1", "quantidade": "5"}}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	first, _ := s.ReadTable("estoque")
	first[0]["quantidade"] = "999"

	second, _ := s.ReadTable("estoque")
	if got := second[0].GetString("quantidade"); got != "5" {
		t.Fatalf("cache leaked caller mutation: quantidade=%q", got)
	}
}

func TestMutate_ErrorLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteTable("pedidos_compra", []models.Row{{"id": "1", "status": "enviado"}}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	wantErr := errors.New("validation failed")
	err := s.Mutate("pedidos_compra", func(rows []models.Row) ([]models.Row, error) {
		rows[0]["status"] = "recebido"
		return rows, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected mutation error, got %v", err)
	}

	rows, _ := s.ReadTable("pedidos_compra")
	if got := rows[0].GetString("status"); got != "enviado" {
		t.Fatalf("failed mutation must not persist: status=%q", got)
	}
}

func TestMutate_ConcurrentIncrements(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteTable("contadores", []models.Row{{"id": "1", "n": float64(0)}}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Mutate("contadores", func(rows []models.Row) ([]models.Row, error) {
				n, _ := rows[0]["n"].(float64)
				rows[0]["n"] = n + 1
				return rows, nil
			})
		}()
	}
	wg.Wait()

	rows, _ := s.ReadTable("contadores")
	if n, _ := rows[0]["n"].(float64); n != workers {
		t.Fatalf("lost updates: n=%v, want %d", n, workers)
	}
}

func TestReadTable_PicksUpExternalEdit(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteTable("veiculos", []models.Row{{"id": "1", "placa": "ABC1D23"}}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if _, err := s.ReadTable("veiculos"); err != nil {
		t.Fatalf("ReadTable: %v", err)
	}

	// Rewrite the file out-of-band with a different mtime.
	path := filepath.Join(s.Dir(), "veiculos.json")
	if err := os.WriteFile(path, []byte(`[{"id":"2","placa":"XYZ9A87"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	future := mustModTime(t, path).Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	rows, err := s.ReadTable("veiculos")
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(rows) != 1 || rows[0].GetString("placa") != "XYZ9A87" {
		t.Fatalf("stale cache served after external edit: %v", rows)
	}
}

func mustModTime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return info.ModTime()
}
