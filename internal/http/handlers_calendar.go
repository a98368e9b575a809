package http

import (
	"net/http"

	"cashflow/internal/projection"
	"cashflow/internal/services"
)

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	win, err := req.window(s.engine.Today())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	view, err := s.engine.Calendar(r.Context(), win, req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	var req upcomingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	view, err := s.engine.Upcoming(r.Context(), req.Days, req.AccountID, req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleDayDetail(w http.ResponseWriter, r *http.Request) {
	var req dayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	detail, err := s.engine.DayDetail(r.Context(), date, req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// projectionResponse pairs the outcome with the toggle state that produced it.
type projectionResponse struct {
	services.ProjectionView
	Toggle projection.ToggleState `json:"toggle"`
}

// handleProjection projects a balance series using the persisted toggle.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	sreq, err := req.toService()
	if err != nil {
		respondErr(w, r, err)
		return
	}

	st, err := s.toggle.Reconcile(r.Context(), sreq.RangeEnd, s.engine.Today())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	view, err := s.engine.Project(r.Context(), sreq, st.Enabled)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projectionResponse{ProjectionView: view, Toggle: st})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	snap, err := s.engine.Budget(r.Context(), req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	win, err := req.window(s.engine.Today())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	breakdown, err := s.engine.Income(r.Context(), win, req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, breakdown)
}
