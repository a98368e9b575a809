package http

import (
	"net/http"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/projection"
)

func (s *Server) handleGetProjectionPreference(w http.ResponseWriter, r *http.Request) {
	on, err := s.toggle.Enabled(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": on})
}

// handlePutProjectionPreference flips the projection toggle for the range
// currently displayed. An omitted range end means today's month end.
func (s *Server) handlePutProjectionPreference(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	st, err := s.setProjection(r, req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) setProjection(r *http.Request, req toggleRequest) (projection.ToggleState, error) {
	today := s.engine.Today()
	end := core.EndOfMonth(today)
	if strings.TrimSpace(req.RangeEnd) != "" {
		var err error
		if end, err = parseDate(req.RangeEnd); err != nil {
			return projection.ToggleState{}, err
		}
	}
	if req.Enabled {
		return s.toggle.Enable(r.Context(), end, today)
	}
	return s.toggle.Disable(r.Context(), end)
}
