package api

import "net/http"

// HealthResponse reports service status and which external collaborators
// are configured. The service is healthy even with collaborators missing;
// it just runs degraded.
type HealthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	BackendConfigured  bool   `json:"backend_configured"`
	DeliveryConfigured bool   `json:"delivery_configured"`
	AuditEnabled       bool   `json:"audit_enabled"`
}

// HealthHandler returns the health check handler.
func HealthHandler(backendConfigured, deliveryConfigured, auditEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:             "healthy",
			Version:            "1.0.0",
			BackendConfigured:  backendConfigured,
			DeliveryConfigured: deliveryConfigured,
			AuditEnabled:       auditEnabled,
		})
	}
}
