package handler

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/soundforge/studio/internal/model"
	"github.com/soundforge/studio/internal/service"
	ws "github.com/soundforge/studio/internal/websocket"
	"github.com/soundforge/studio/pkg/response"
)

// StreamHandler serves /ws/jobs/:jobId. A subscriber first receives the
// job's current state, then live events from the hub. The state is read
// after the subscription exists, so a terminal event may arrive twice but
// is never missed.
type StreamHandler struct {
	service *service.GenerationService
	hub     *ws.Hub
}

func NewStreamHandler(svc *service.GenerationService, hub *ws.Hub) *StreamHandler {
	return &StreamHandler{service: svc, hub: hub}
}

func (h *StreamHandler) Stream(c *websocket.Conn) {
	jobID := c.Params("jobId")

	h.hub.HandleConnection(c, jobID, func() ([]byte, bool) {
		current, err := h.service.JobMessage(context.Background(), jobID)
		if err != nil {
			data, _ := json.Marshal(model.WSErrorMessage{
				Type:  model.WSMessageTypeError,
				JobID: jobID,
				Error: model.WSError{Code: response.CodeNotFound, Message: "Job not found"},
			})
			return data, false
		}

		greeting, err := json.Marshal(current)
		if err != nil {
			log.Printf("Failed to marshal job state for %s: %v", jobID, err)
			return nil, true
		}
		return greeting, true
	})
}
