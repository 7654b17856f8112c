package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

// Query-string keys that drive ordering and pagination; everything else is a
// column filter (with the optional __ilike suffix).
var reservedParams = map[string]struct{}{
	"order":  {},
	"dir":    {},
	"limit":  {},
	"offset": {},
}

func queryFromRequest(c *gin.Context) models.Query {
	q := models.Query{Filters: models.Filters{}}
	for key, values := range c.Request.URL.Query() {
		if _, reserved := reservedParams[key]; reserved || len(values) == 0 {
			continue
		}
		q.Filters[key] = values[0]
	}
	q.OrderBy = c.Query("order")
	q.Desc = c.Query("dir") == "desc"
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n > 0 {
		q.Offset = n
	}
	return q
}

func (s *Server) listHandler(c *gin.Context) {
	table := c.Param("table")
	q := queryFromRequest(c)
	rows, err := s.gw.List(c.Request.Context(), table, q)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Row{}
	}
	total, err := s.gw.Count(c.Request.Context(), table, q.Filters)
	if err != nil {
		s.respondError(c, err)
		return
	}

	body := gin.H{
		"data":     rows,
		"total":    total,
		"has_more": false,
		"mode":     s.gw.Selector().ModeName(),
	}
	if next := int64(q.Offset + len(rows)); next < total {
		body["has_more"] = true
		body["next_offset"] = next
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) countHandler(c *gin.Context) {
	count, err := s.gw.Count(c.Request.Context(), c.Param("table"), queryFromRequest(c).Filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": count}})
}

// insertHandler accepts a single object or an array of objects.
func (s *Server) insertHandler(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var rows []models.Row
	if err := utils.UnmarshalFromJSON(raw, &rows); err != nil {
		var one models.Row
		if err := utils.UnmarshalFromJSON(raw, &one); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		rows = []models.Row{one}
	}

	inserted, err := s.gw.Insert(c.Request.Context(), c.Param("table"), rows)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": inserted})
}

// updateHandler patches every row matched by the query-string filters with the
// body. An unfiltered update is rejected rather than rewriting the table.
func (s *Server) updateHandler(c *gin.Context) {
	filters := queryFromRequest(c).Filters
	if len(filters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filters are required"})
		return
	}
	var patch models.Row
	if err := c.ShouldBindJSON(&patch); err != nil || len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := s.gw.Update(c.Request.Context(), c.Param("table"), filters, patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// deleteHandler takes its filters from the query string; an unfiltered delete
// is rejected rather than emptying the table.
func (s *Server) deleteHandler(c *gin.Context) {
	filters := queryFromRequest(c).Filters
	if len(filters) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filters are required"})
		return
	}

	deleted, err := s.gw.Delete(c.Request.Context(), c.Param("table"), filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": deleted})
}
