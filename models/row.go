package models

import "fmt"

// Row is an open, column-keyed record as it travels through the gateway.
// Both storage backends produce and consume this shape, so callers never see
// a representational difference between modes.
type Row map[string]any

func (r Row) GetString(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Change pairs the before and after images of one mutated row.
type Change struct {
	Before Row
	After  Row
}
