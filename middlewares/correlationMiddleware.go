package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

const CorrelationHeader = "X-Correlation-Id"

// CorrelationMiddleware propagates the caller's correlation id, minting one
// when the header is absent. The id is echoed on the response and attached to
// every audit row the request produces.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Request.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Writer.Header().Set(CorrelationHeader, id)
		c.Next()
	}
}
