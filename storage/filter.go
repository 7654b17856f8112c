package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
)

// MatchRow evaluates the filter set against one row. This is the contingency
// side of the parity contract: the SQL the relational backend emits and this
// function must accept exactly the same rows.
func MatchRow(row models.Row, filters models.Filters) bool {
	for key, want := range filters {
		column, op := models.SplitFilterKey(key)
		got, ok := row[column]
		switch op {
		case models.OpILike:
			if !ok || got == nil {
				return false
			}
			if !strings.Contains(strings.ToLower(stringify(got)), strings.ToLower(stringify(want))) {
				return false
			}
		default:
			if !valuesEqual(got, want) {
				return false
			}
		}
	}
	return true
}

// ApplyQuery filters, orders and paginates an in-memory snapshot.
func ApplyQuery(rows []models.Row, q models.Query) []models.Row {
	matched := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if MatchRow(row, q.Filters) {
			matched = append(matched, row)
		}
	}

	if q.OrderBy != "" {
		SortRows(matched, q.OrderBy, q.Desc)
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []models.Row{}
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched
}

// SortRows orders rows by one column, numeric-aware: "10" sorts after "9"
// when both sides parse as numbers, matching MySQL's comparison of numeric
// columns.
func SortRows(rows []models.Row, column string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		less := lessValue(rows[i][column], rows[j][column])
		if desc {
			return lessValue(rows[j][column], rows[i][column])
		}
		return less
	})
}

func lessValue(a, b any) bool {
	// NULLs first, like MySQL ASC ordering.
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return stringify(a) < stringify(b)
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringify(a) == stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
