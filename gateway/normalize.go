package gateway

import (
	"encoding/json"
	"time"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

// Accepted temporal input shapes, canonicalized to RFC3339 UTC on write.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeRowForWrite canonicalizes timestamp and JSON columns so both
// backends persist the identical textual shape.
func normalizeRowForWrite(spec *models.TableSpec, row models.Row) models.Row {
	out := row.Clone()
	for col, v := range out {
		switch {
		case spec.IsTimestampColumn(col):
			out[col] = canonicalTimestamp(v)
		case spec.IsJSONColumn(col):
			out[col] = canonicalJSON(v)
		}
	}
	return out
}

// canonicalTimestamp parses known layouts and reformats to RFC3339 UTC.
// Malformed input is passed through unchanged: documented leniency, the
// column still stores what the caller sent.
func canonicalTimestamp(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC().Format(time.RFC3339)
			}
		}
		return t
	default:
		return v
	}
}

// canonicalJSON serializes structured values; strings that already hold valid
// JSON are kept as-is, anything else is marshalled.
func canonicalJSON(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if json.Valid([]byte(t)) {
			return t
		}
		b, err := json.Marshal(t)
		if err != nil {
			return t
		}
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return v
		}
		return string(b)
	}
}

// decodeRowForRead turns stored JSON strings back into structured values, so
// callers always see the same shape regardless of the active backend.
func decodeRowForRead(spec *models.TableSpec, row models.Row) models.Row {
	out := row.Clone()
	for _, col := range spec.JSONColumns {
		if s, ok := out[col].(string); ok && s != "" {
			out[col] = utils.DecodeJSONValue(s)
		}
	}
	return out
}

func decodeRowsForRead(spec *models.TableSpec, rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = decodeRowForRead(spec, r)
	}
	return out
}
