package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// handleHealth reports engine and broker connectivity. It always returns
// 200; "status" is "degraded" when either link is down.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.engine.State()
	mqttConnected := s.mqtt != nil && s.mqtt.IsConnected()

	status := "healthy"
	if state != rnet.StateOnline || !mqttConnected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"rnet": map[string]any{
			"state":    state.String(),
			"endpoint": s.engine.Endpoint().String(),
		},
		"mqtt": map[string]any{
			"connected": mqttConnected,
		},
	})
}
