package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-rnet/internal/audit"
)

// handleListCommands returns the command log, most recent first.
//
// Query parameters: command, controller, zone, source, limit, offset.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Command: q.Get("command"),
		Source:  q.Get("source"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"controller", &filter.Controller},
		{"zone", &filter.Zone},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeBadRequest(w, p.name+" must be a non-negative number")
			return
		}
		*p.dst = v
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command log", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
