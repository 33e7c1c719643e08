package api

import (
	"io"
	"net/http"

	"github.com/complyport/realtime-service/internal/broadcast"
	"github.com/complyport/realtime-service/internal/domain"
)

// EventHandler accepts typed state-change events from backend producers
// and broadcasts them to the matching workspace channel.
type EventHandler struct {
	dispatcher *broadcast.Dispatcher
}

func NewEventHandler(d *broadcast.Dispatcher) *EventHandler {
	return &EventHandler{dispatcher: d}
}

type createEventResponse struct {
	EventKind domain.Kind    `json:"event_kind"`
	Channel   domain.Channel `json:"channel"`
	Delivered int            `json:"delivered"`
}

// Create ingests one event envelope. The event kind is the discriminant;
// an unknown kind or invalid payload is rejected with 400. Delivery
// failures are not errors: the response reports delivered=0 and the
// producer's own state change stands.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		respondError(w, http.StatusBadRequest, "event payload is required")
		return
	}

	event, err := domain.DecodeEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel, _ := domain.ChannelFor(event.EventKind())
	delivered := h.dispatcher.Dispatch(r.Context(), event)

	respondJSON(w, http.StatusAccepted, createEventResponse{
		EventKind: event.EventKind(),
		Channel:   channel,
		Delivered: delivered,
	})
}
