package api

import (
	"net/http"
	"strconv"

	"github.com/complyport/realtime-service/internal/store"
)

// MetricsHandler serves the broadcast audit log and its aggregates for the
// operations dashboard. The audit store is optional; without it the
// handler serves empty data rather than failing.
type MetricsHandler struct {
	store *store.PostgresStore
}

func NewMetricsHandler(s *store.PostgresStore) *MetricsHandler {
	return &MetricsHandler{store: s}
}

// Metrics returns aggregated broadcast statistics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondJSON(w, http.StatusOK, store.BroadcastMetrics{ByChannel: map[string]int{}})
		return
	}

	metrics, err := h.store.GetBroadcastMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	respondJSON(w, http.StatusOK, metrics)
}

// Broadcasts lists recent broadcast attempts.
func (h *MetricsHandler) Broadcasts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondJSON(w, http.StatusOK, []store.BroadcastLogEntry{})
		return
	}

	workspaceID := r.URL.Query().Get("workspace_id")
	status := r.URL.Query().Get("status")
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.store.ListBroadcasts(r.Context(), workspaceID, status, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list broadcasts")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}
