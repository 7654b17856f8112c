package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
)

const defaultAuditPageSize = 50

// auditSearchHandler is the trail's read surface. Exact-match dimensions go
// through storage filters; free text, warehouse scoping and the date range are
// applied here because they cut across columns the filter grammar treats
// individually.
func (s *Server) auditSearchHandler(c *gin.Context) {
	filters := models.Filters{}
	for _, key := range []string{"module", "entity", "action"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}
	if v := c.Query("actor"); v != "" {
		filters["actor__ilike"] = v
	}

	rows, err := s.gw.List(c.Request.Context(), models.TableAuditLogs, models.Query{
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   gateway.ListLimitCeiling,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	warehouse := c.Query("almoxarifado_id")
	includeGlobal, _ := strconv.ParseBool(c.DefaultQuery("include_global", "true"))
	q := strings.ToLower(c.Query("q"))
	from, hasFrom := parseTimeParam(c.Query("from"))
	to, hasTo := parseTimeParam(c.Query("to"))

	matched := rows[:0]
	for _, row := range rows {
		if warehouse != "" && !matchesWarehouse(row, warehouse, includeGlobal) {
			continue
		}
		if q != "" && !matchesText(row, q) {
			continue
		}
		if hasFrom || hasTo {
			created, ok := parseTimeParam(row.GetString("created_at"))
			if !ok {
				continue
			}
			if hasFrom && created.Before(from) {
				continue
			}
			if hasTo && created.After(to) {
				continue
			}
		}
		matched = append(matched, row)
	}

	limit := defaultAuditPageSize
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 && n <= gateway.ListLimitCeiling {
		limit = n
	}
	offset := 0
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n > 0 {
		offset = n
	}

	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     matched[offset:end],
		"total":    total,
		"has_more": end < total,
	})
}

func matchesWarehouse(row models.Row, warehouse string, includeGlobal bool) bool {
	scope := row.GetString("warehouse_id")
	if scope == warehouse {
		return true
	}
	if includeGlobal && (scope == "" || scope == models.GlobalWarehouseId) {
		return true
	}
	return false
}

func matchesText(row models.Row, q string) bool {
	for _, col := range []string{"entity_id", "before_data", "after_data", "meta"} {
		if strings.Contains(strings.ToLower(row.GetString(col)), q) {
			return true
		}
	}
	return false
}

func parseTimeParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
