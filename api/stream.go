package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const streamBuffer = 32

// streamHandler pushes committed table changes as server-sent events. A slow
// consumer loses events rather than blocking writers; the hub drops instead
// of queueing unboundedly.
func (s *Server) streamHandler(c *gin.Context) {
	events, unsubscribe := s.hub.Subscribe(streamBuffer)
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Table+"."+event.Action, event)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now().UTC().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
