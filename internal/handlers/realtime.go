package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/realtime"
	"github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into room-based websocket streams.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// GET /api/v1/ws
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	h.hub.Serve(c.Writer, c.Request)
}
