// Package api is the REST surface over the persistence gateway. Handlers
// translate HTTP into gateway/workflow calls and map the error taxonomy onto
// status codes; no business rule lives here.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/broadcast"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/config"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/middlewares"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/workflow"
	"github.com/sirupsen/logrus"
)

type Server struct {
	gw      *gateway.Gateway
	receipt *workflow.ReceiptFinalizer
	state   *connectivity.State
	hub     *broadcast.Hub
	log     *logrus.Logger
}

func NewServer(gw *gateway.Gateway, receipt *workflow.ReceiptFinalizer, state *connectivity.State, hub *broadcast.Hub) *Server {
	return &Server{
		gw:      gw,
		receipt: receipt,
		state:   state,
		hub:     hub,
		log:     config.GetLogger(),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.healthHandler)
	r.POST("/auth/login", s.loginHandler)

	protected := r.Group("/api", middlewares.AuthMiddleware(), middlewares.RequireAuth())
	{
		protected.GET("/tables/:table", s.listHandler)
		protected.GET("/tables/:table/count", s.countHandler)
		protected.POST("/tables/:table", s.insertHandler)
		protected.PATCH("/tables/:table", s.updateHandler)
		protected.DELETE("/tables/:table", s.deleteHandler)

		protected.POST("/pedidos-compra/:numero/receber", s.receiptHandler)
		protected.GET("/audit-logs/search", s.auditSearchHandler)
		protected.GET("/stream", s.streamHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}

// healthHandler reports which storage mode is serving and the last probe
// outcome. Always 200: degraded-but-serving is the whole point of the
// contingency store.
func (s *Server) healthHandler(c *gin.Context) {
	snapshot := s.state.Snapshot()
	body := gin.H{
		"status":      "ok",
		"mode":        s.gw.Selector().ModeName(),
		"connected":   snapshot.Connected,
		"subscribers": s.hub.SubscriberCount(),
	}
	if !snapshot.LastCheckedAt.IsZero() {
		body["last_checked_at"] = snapshot.LastCheckedAt.UTC().Format(time.RFC3339)
	}
	if snapshot.LastError != "" {
		body["last_error"] = snapshot.LastError
	}
	c.JSON(http.StatusOK, body)
}
