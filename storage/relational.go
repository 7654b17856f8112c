package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relational serves the whitelisted tables straight from MySQL through the
// shared gorm handle. Rows travel as open maps; nothing here is
// struct-mapped, the registry is the only schema.
type Relational struct {
	db *gorm.DB
}

func NewRelational(db *gorm.DB) *Relational {
	return &Relational{db: db}
}

func (b *Relational) Name() string { return "relational" }

func (b *Relational) List(ctx context.Context, spec *models.TableSpec, q models.Query) ([]models.Row, error) {
	tx := buildList(b.db.WithContext(ctx).Table(spec.Name), q)

	var raw []map[string]interface{}
	if err := tx.Find(&raw).Error; err != nil {
		return nil, err
	}
	rows := make([]models.Row, len(raw))
	for i, m := range raw {
		rows[i] = normalizeDBRow(m)
	}
	return rows, nil
}

func (b *Relational) Count(ctx context.Context, spec *models.TableSpec, filters models.Filters) (int64, error) {
	var count int64
	tx := applyFilters(b.db.WithContext(ctx).Table(spec.Name), filters)
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (b *Relational) Insert(ctx context.Context, spec *models.TableSpec, rows []models.Row) ([]models.Row, error) {
	records := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		records[i] = map[string]interface{}(r)
	}
	if err := b.db.WithContext(ctx).Table(spec.Name).Create(&records).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update selects the matching rows under a row lock, applies the patch, and
// reports before/after images so the audit trail can be built without a
// second read.
func (b *Relational) Update(ctx context.Context, spec *models.TableSpec, filters models.Filters, patch models.Row) ([]models.Change, error) {
	var changes []models.Change
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raw []map[string]interface{}
		sel := applyFilters(tx.Table(spec.Name), filters).Clauses(clause.Locking{Strength: "UPDATE"})
		if err := sel.Find(&raw).Error; err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}

		ids := make([]any, 0, len(raw))
		for _, m := range raw {
			ids = append(ids, m["id"])
		}
		if err := tx.Table(spec.Name).Where("`id` IN ?", ids).Updates(map[string]interface{}(patch)).Error; err != nil {
			return err
		}

		changes = make([]models.Change, len(raw))
		for i, m := range raw {
			before := normalizeDBRow(m)
			after := before.Clone()
			for k, v := range patch {
				after[k] = v
			}
			changes[i] = models.Change{Before: before, After: after}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (b *Relational) Delete(ctx context.Context, spec *models.TableSpec, filters models.Filters) ([]models.Row, error) {
	var deleted []models.Row
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var raw []map[string]interface{}
		sel := applyFilters(tx.Table(spec.Name), filters).Clauses(clause.Locking{Strength: "UPDATE"})
		if err := sel.Find(&raw).Error; err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}

		ids := make([]any, 0, len(raw))
		deleted = make([]models.Row, len(raw))
		for i, m := range raw {
			ids = append(ids, m["id"])
			deleted[i] = normalizeDBRow(m)
		}
		return tx.Table(spec.Name).Where("`id` IN ?", ids).Delete(nil).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ApplyFilterSQL exposes the filter translation for callers that compose
// their own statements (receipt workflow, tests asserting the emitted SQL).
func ApplyFilterSQL(tx *gorm.DB, filters models.Filters) *gorm.DB {
	return applyFilters(tx, filters)
}

func buildList(tx *gorm.DB, q models.Query) *gorm.DB {
	tx = applyFilters(tx, q.Filters)
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("`%s` %s", q.OrderBy, dir))
	}
	limit := q.Limit
	if limit <= 0 && q.Offset > 0 {
		// MySQL has no bare OFFSET clause; an unlimited paginated read needs
		// an explicit huge limit (the manual's LIMIT 18446744073709551615 idiom).
		limit = math.MaxInt64
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

// escapeLike neutralizes LIKE metacharacters so a filter value containing
// % or _ matches literally, same as the contingency substring check.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func applyFilters(tx *gorm.DB, filters models.Filters) *gorm.DB {
	for key, value := range filters {
		column, op := models.SplitFilterKey(key)
		switch op {
		case models.OpILike:
			pattern := "%" + escapeLike(strings.ToLower(stringify(value))) + "%"
			tx = tx.Where(fmt.Sprintf("LOWER(`%s`) LIKE ?", column), pattern)
		default:
			if value == nil {
				tx = tx.Where(fmt.Sprintf("`%s` IS NULL", column))
			} else {
				tx = tx.Where(fmt.Sprintf("`%s` = ?", column), value)
			}
		}
	}
	return tx
}

// NormalizeDBRow converts driver values into the wire shape the contingency
// backend produces natively, so callers cannot tell the modes apart. Exposed
// for workflows that scan rows inside their own transactions.
func NormalizeDBRow(m map[string]interface{}) models.Row {
	return normalizeDBRow(m)
}

func normalizeDBRow(m map[string]interface{}) models.Row {
	row := make(models.Row, len(m))
	for k, v := range m {
		row[k] = normalizeDBValue(v)
	}
	return row
}

func normalizeDBValue(v interface{}) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
