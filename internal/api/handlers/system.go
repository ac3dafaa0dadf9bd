package handlers

import (
	"net/http"

	"github.com/ramonehamilton/commander-builder/internal/api/response"
	"github.com/ramonehamilton/commander-builder/internal/metrics"
)

// SystemHandler serves health and metrics endpoints.
type SystemHandler struct {
	metrics *metrics.RemoteMetrics
	clients func() int
}

// NewSystemHandler creates a new SystemHandler. clients reports the
// connected WebSocket clients and may be nil.
func NewSystemHandler(m *metrics.RemoteMetrics, clients func() int) *SystemHandler {
	return &SystemHandler{metrics: m, clients: clients}
}

// HealthStatus is the health check payload.
type HealthStatus struct {
	Status           string `json:"status"`
	WebSocketClients int    `json:"websocket_clients"`
}

// Health reports that the server is up.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "healthy"}
	if h.clients != nil {
		status.WebSocketClients = h.clients()
	}
	response.JSON(w, http.StatusOK, status)
}

// GetMetrics returns remote call metrics.
func (h *SystemHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		response.Success(w, &metrics.Stats{Operations: []metrics.OperationStats{}})
		return
	}
	response.Success(w, h.metrics.GetStats())
}
