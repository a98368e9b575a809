package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cashflow/internal/log"
	"cashflow/internal/remote"
	"cashflow/internal/services"
)

func (s *Server) handleCreateScreen(w http.ResponseWriter, r *http.Request) {
	sc, err := s.screens.create(func(id string) *services.Screen {
		var opts []services.ScreenOption
		if s.invalidator != nil {
			opts = append(opts, services.WithInvalidator(s.invalidator))
		}
		return services.NewScreen(id, s.engine, s.toggle, s.logger, opts...)
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Screen mounted",
		log.FieldSessionID, sc.ID,
		"open_screens", s.screens.count())
	respondJSON(w, http.StatusCreated, map[string]string{"id": sc.ID})
}

func (s *Server) handleDeleteScreen(w http.ResponseWriter, r *http.Request) {
	s.screens.remove(screenFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleScreenCalendar navigates the screen. A navigation overtaken by a
// newer one answers 409 and must be ignored by the client.
func (s *Server) handleScreenCalendar(w http.ResponseWriter, r *http.Request) {
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

	view, err := screenFrom(r).Navigate(r.Context(), win, req.Profile)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleScreenCurrent(w http.ResponseWriter, r *http.Request) {
	view, ok := screenFrom(r).Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleScreenProjection(w http.ResponseWriter, r *http.Request) {
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

	view, st, err := screenFrom(r).Projection(r.Context(), sreq)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, projectionResponse{ProjectionView: view, Toggle: st})
}

func (s *Server) handleScreenToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	end, err := parseDate(req.RangeEnd)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	sc := screenFrom(r)
	if req.Enabled {
		st, err := sc.EnableProjection(r.Context(), end)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, st)
		return
	}
	st, err := sc.DisableProjection(r.Context(), end)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	container := strings.TrimSpace(chi.URLParam(r, "container"))
	if container == "" {
		respondError(w, http.StatusBadRequest, "container is required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"bound": screenFrom(r).Bind(container)})
}

// browseResponse adds whether the caller's filter no longer matches the
// loaded queue.
type browseResponse struct {
	services.BrowseView
	Stale bool `json:"stale"`
}

func (s *Server) handleOpenBrowse(w http.ResponseWriter, r *http.Request) {
	var req browseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	view, err := screenFrom(r).OpenBrowse(r.Context(), req.query())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetBrowse(w http.ResponseWriter, r *http.Request) {
	sc := screenFrom(r)
	q := browseQueryFromURL(r.URL.Query().Get)
	respondJSON(w, http.StatusOK, browseResponse{BrowseView: sc.Browse(), Stale: sc.Stale(q)})
}

func (s *Server) handleBrowseNext(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, screenFrom(r).Next())
}

func (s *Server) handleBrowsePrev(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, screenFrom(r).Prev())
}

func (s *Server) handleApplyRule(w http.ResponseWriter, r *http.Request) {
	var rule remote.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		respondErr(w, r, err)
		return
	}

	res, err := screenFrom(r).ApplyRule(r.Context(), rule)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleOpenDetail(w http.ResponseWriter, r *http.Request) {
	view, err := screenFrom(r).OpenDetail()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCloseDetail(w http.ResponseWriter, r *http.Request) {
	view, err := screenFrom(r).CloseDetail()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
