package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/complyport/realtime-service/internal/domain"
	"github.com/complyport/realtime-service/internal/notify"
	"github.com/go-chi/chi/v5"
)

type NotificationHandler struct {
	notifications *notify.Client
}

func NewNotificationHandler(c *notify.Client) *NotificationHandler {
	return &NotificationHandler{notifications: c}
}

// List returns the caller's notifications. GET takes the filter from query
// parameters; POST takes it from the body. Upstream failures degrade to the
// empty shape inside the gateway, so an authenticated caller always gets a
// renderable 200.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var filter domain.NotificationFilter
	if r.Method == http.MethodPost {
		// Body is optional; an empty or absent body means no filter
		if err := json.NewDecoder(r.Body).Decode(&filter); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		filter.Category = domain.Category(r.URL.Query().Get("category"))
		filter.Priority = domain.Priority(r.URL.Query().Get("priority"))
	}

	respondJSON(w, http.StatusOK, h.notifications.List(r.Context(), identity, filter))
}

// Count returns the badge-count aggregate. Unlike the other notification
// endpoints it never returns 401: badges must render on every page, so an
// anonymous caller gets the zero aggregate.
func (h *NotificationHandler) Count(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.notifications.Count(r.Context(), identityFrom(r)))
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	ok := h.notifications.MarkRead(r.Context(), identity, id)
	respondJSON(w, http.StatusOK, successResponse{Success: ok})
}

type markAllReadRequest struct {
	Category domain.Category `json:"category,omitempty"`
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req markAllReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok := h.notifications.MarkAllRead(r.Context(), identity, req.Category)
	respondJSON(w, http.StatusOK, successResponse{Success: ok})
}
