package models

import "strings"

// Filter operators. Equality is the default; __ilike is a case-insensitive
// substring match. The suffix travels on the filter key ("descricao__ilike").
const (
	OpEq    = "eq"
	OpILike = "ilike"

	ilikeSuffix = "__ilike"
)

// Filters is a column-keyed filter set, operator suffix included.
type Filters map[string]any

// SplitFilterKey separates "col__ilike" into ("col", OpILike).
func SplitFilterKey(key string) (column string, op string) {
	if strings.HasSuffix(key, ilikeSuffix) {
		return strings.TrimSuffix(key, ilikeSuffix), OpILike
	}
	return key, OpEq
}

// Query is the full read shape: filters plus order/pagination.
// Limit <= 0 means no limit.
type Query struct {
	Filters Filters
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}
