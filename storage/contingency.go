package storage

import (
	"context"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
)

// Contingency adapts the file store to the backend contract. Every mutation
// is a read-snapshot / mutate / rewrite cycle under the store's table lock.
type Contingency struct {
	store *contingency.Store
}

func NewContingency(store *contingency.Store) *Contingency {
	return &Contingency{store: store}
}

func (b *Contingency) Name() string { return "contingency" }

func (b *Contingency) Store() *contingency.Store { return b.store }

func (b *Contingency) List(ctx context.Context, spec *models.TableSpec, q models.Query) ([]models.Row, error) {
	rows, err := b.store.ReadTable(spec.Name)
	if err != nil {
		return nil, err
	}
	return ApplyQuery(rows, q), nil
}

func (b *Contingency) Count(ctx context.Context, spec *models.TableSpec, filters models.Filters) (int64, error) {
	rows, err := b.store.ReadTable(spec.Name)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, row := range rows {
		if MatchRow(row, filters) {
			count++
		}
	}
	return count, nil
}

func (b *Contingency) Insert(ctx context.Context, spec *models.TableSpec, rows []models.Row) ([]models.Row, error) {
	err := b.store.Mutate(spec.Name, func(current []models.Row) ([]models.Row, error) {
		return append(current, rows...), nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *Contingency) Update(ctx context.Context, spec *models.TableSpec, filters models.Filters, patch models.Row) ([]models.Change, error) {
	var changes []models.Change
	err := b.store.Mutate(spec.Name, func(current []models.Row) ([]models.Row, error) {
		next := make([]models.Row, len(current))
		for i, row := range current {
			if !MatchRow(row, filters) {
				next[i] = row
				continue
			}
			after := row.Clone()
			for k, v := range patch {
				after[k] = v
			}
			changes = append(changes, models.Change{Before: row, After: after})
			next[i] = after
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (b *Contingency) Delete(ctx context.Context, spec *models.TableSpec, filters models.Filters) ([]models.Row, error) {
	var deleted []models.Row
	err := b.store.Mutate(spec.Name, func(current []models.Row) ([]models.Row, error) {
		kept := make([]models.Row, 0, len(current))
		for _, row := range current {
			if MatchRow(row, filters) {
				deleted = append(deleted, row)
				continue
			}
			kept = append(kept, row)
		}
		return kept, nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
