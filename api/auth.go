package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

type loginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Senha string `json:"senha" binding:"required"`
}

// loginHandler authenticates against the usuarios table on whichever storage
// mode is active, so operators can still sign in during an outage.
func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and senha are required"})
		return
	}

	rows, err := s.gw.List(c.Request.Context(), models.TableUsuarios, models.Query{
		Filters: models.Filters{"email": req.Email},
		Limit:   1,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if len(rows) == 0 {
		s.respondError(c, utils.ErrInvalidCredentials)
		return
	}

	user := rows[0]
	if active, ok := user["ativo"].(bool); ok && !active {
		s.respondError(c, utils.ErrInvalidCredentials)
		return
	}
	if err := utils.ComparePassword(user.GetString("senha_hash"), req.Senha); err != nil {
		s.respondError(c, utils.ErrInvalidCredentials)
		return
	}

	token, err := utils.JwtGenerate(user.GetString("id"), user.GetString("nome"), user.GetString("role"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	delete(user, "senha_hash")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token, "usuario": user}})
}
