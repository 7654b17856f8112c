package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/workflow"
)

// receiptHandler finalizes a submitted purchase order: status flip, stock
// increments and movement rows in one transaction. The body is optional and
// may override the warehouse and received quantities.
func (s *Server) receiptHandler(c *gin.Context) {
	numero := c.Param("numero")
	if numero == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "numero is required"})
		return
	}

	var req *workflow.ReceiptRequest
	if c.Request.ContentLength > 0 {
		req = &workflow.ReceiptRequest{}
		if err := c.ShouldBindJSON(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	result, err := s.receipt.Finalize(c.Request.Context(), numero, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
