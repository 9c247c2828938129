package handlers

import (
	"io"
	"net/http"

	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Events streamt Anwesenheitsereignisse als Server-Sent Events
func (h *APIHandler) Events(c *gin.Context) {
	if h.hub == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	client := make(sse.Client, 10)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	log.Debugf("SSE client connected from %s", c.ClientIP())
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		}
	})
	log.Debugf("SSE client from %s disconnected", c.ClientIP())
}

// SystemStats gibt System- und Warteschlangenstatistiken zurück
func (h *APIHandler) SystemStats(c *gin.Context) {
	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}
	c.JSON(http.StatusOK, utils.GetSystemStats(h.pool, clients))
}
