// Package contingency is the file-backed fallback store: one JSON array
// document per table, cached in memory keyed by file modification time.
// It is a pure storage primitive; whitelisting, filtering and audit live in
// the layers above it.
package contingency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/sirupsen/logrus"
)

type cacheEntry struct {
	modTime time.Time
	rows    []models.Row
}

// Store reads and rewrites whole-table JSON snapshots. A per-table mutex
// serializes writers within this process; contingency mode assumes a single
// writer process (see DESIGN.md), the lock only covers concurrent requests
// inside it.
type Store struct {
	dir string
	log *logrus.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]cacheEntry
}

func NewStore(dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("contingency: create dir %s: %w", dir, err)
	}
	return &Store{
		dir:   dir,
		log:   log,
		locks: map[string]*sync.Mutex{},
		cache: map[string]cacheEntry{},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".json")
}

func (s *Store) tableLock(table string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.locks[table]
	if l == nil {
		l = &sync.Mutex{}
		s.locks[table] = l
	}
	return l
}

// ReadTable returns the current snapshot. A missing file is an empty table.
// Unchanged files are served from cache without re-parsing.
func (s *Store) ReadTable(table string) ([]models.Row, error) {
	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()
	return s.readLocked(table)
}

func (s *Store) readLocked(table string) ([]models.Row, error) {
	path := s.path(table)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contingency: stat %s: %w", path, err)
	}

	s.mu.Lock()
	entry, cached := s.cache[table]
	s.mu.Unlock()
	if cached && entry.modTime.Equal(info.ModTime()) {
		return cloneRows(entry.rows), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contingency: read %s: %w", path, err)
	}
	var rows []models.Row
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("contingency: parse %s: %w", path, err)
		}
	}

	s.mu.Lock()
	s.cache[table] = cacheEntry{modTime: info.ModTime(), rows: cloneRows(rows)}
	s.mu.Unlock()

	return rows, nil
}

// WriteTable replaces the whole snapshot: temp file then rename, so a partial
// document is never observable. The cache is refreshed from the just-written
// value, not a re-read, to avoid a read-after-write race within this process.
func (s *Store) WriteTable(table string, rows []models.Row) error {
	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(table, rows)
}

func (s *Store) writeLocked(table string, rows []models.Row) error {
	if rows == nil {
		rows = []models.Row{}
	}
	raw, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("contingency: marshal %s: %w", table, err)
	}

	path := s.path(table)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("contingency: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("contingency: rename %s: %w", tmp, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		// Cache refresh failed; next read falls back to parsing the file.
		s.mu.Lock()
		delete(s.cache, table)
		s.mu.Unlock()
		return nil
	}
	s.mu.Lock()
	s.cache[table] = cacheEntry{modTime: info.ModTime(), rows: cloneRows(rows)}
	s.mu.Unlock()
	return nil
}

// Mutate applies fn to the current snapshot and rewrites the file only when fn
// succeeds, holding the table lock across the whole read-mutate-rewrite cycle.
func (s *Store) Mutate(table string, fn func(rows []models.Row) ([]models.Row, error)) error {
	lock := s.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.readLocked(table)
	if err != nil {
		return err
	}
	next, err := fn(rows)
	if err != nil {
		return err
	}
	return s.writeLocked(table, next)
}

func cloneRows(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
