package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

// respondError maps the error taxonomy onto HTTP statuses. Anything the
// taxonomy does not cover is a 500 with a generic body; the real error only
// goes to the log.
func (s *Server) respondError(c *gin.Context, err error) {
	var writeRestricted *utils.WriteRestrictedError
	var conflict *utils.ConflictError
	var statusConflict *utils.StatusConflictError

	switch {
	case errors.Is(err, utils.ErrTableNotAllowed), errors.Is(err, utils.ErrColumnNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &writeRestricted):
		c.JSON(http.StatusForbidden, gin.H{
			"error":           writeRestricted.Error(),
			"canonical_table": writeRestricted.Canonical,
		})
	case errors.Is(err, utils.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":    conflict.Error(),
			"table":    conflict.Table,
			"column":   conflict.Column,
			"value":    conflict.Value,
			"existing": conflict.Existing,
		})
	case errors.As(err, &statusConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":    statusConflict.Error(),
			"numero":   statusConflict.OrderNumber,
			"expected": statusConflict.Expected,
			"actual":   statusConflict.Actual,
		})
	case errors.Is(err, utils.ErrInvalidTaxId), errors.Is(err, utils.ErrInvalidPhone), errors.Is(err, utils.ErrInvalidEmail):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		s.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
