package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-rnet/internal/bridge"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// commandSourceAPI tags HTTP commands in the command log.
const commandSourceAPI = "api"

// commandRequest is the body of POST /zones/{controller}/{zone}/commands.
type commandRequest struct {
	Command string `json:"command"`
	Value   *int   `json:"value,omitempty"`
}

// handleListZones returns every registered zone with its last-known state.
func (s *Server) handleListZones(w http.ResponseWriter, _ *http.Request) {
	zones := s.zones.ListZones()
	writeJSON(w, http.StatusOK, map[string]any{
		"zones": zones,
		"count": len(zones),
	})
}

// handleZoneCommand validates and sends a logical command to one zone.
func (s *Server) handleZoneCommand(w http.ResponseWriter, r *http.Request) {
	controller, err := strconv.Atoi(chi.URLParam(r, "controller"))
	if err != nil {
		writeBadRequest(w, "controller must be a number")
		return
	}
	zoneNum, err := strconv.Atoi(chi.URLParam(r, "zone"))
	if err != nil {
		writeBadRequest(w, "zone must be a number")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := bridge.ResolveCommand(req.Command, controller, zoneNum, req.Value)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	commandID := uuid.NewString()
	cmd.ID = commandID
	cmd.Source = commandSourceAPI
	if err := s.commands.Execute(r.Context(), cmd); err != nil {
		s.logger.Warn("zone command failed",
			"command_id", commandID,
			"zone", cmd.Zone.String(),
			"command", req.Command,
			"error", err)
		s.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id": commandID,
		"status":     "accepted",
		"zone":       cmd.Zone.String(),
		"command":    req.Command,
	})
}

func (s *Server) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rnet.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "rnet not connected")
	case errors.Is(err, bridge.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "bridge is shutting down")
	case errors.Is(err, rnet.ErrWriteFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "command timed out")
	default:
		writeInternalError(w, fmt.Sprintf("command failed: %v", err))
	}
}
