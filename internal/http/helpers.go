package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cashflow/internal/browse"
	"cashflow/internal/core"
	"cashflow/internal/feeds"
	"cashflow/internal/log"
	"cashflow/internal/remote"
	"cashflow/internal/services"
)

var (
	errBadRequest     = errors.New("bad request")
	errScreenNotFound = errors.New("screen not found")
	errTooManyScreens = errors.New("too many open screens")
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	var statusErr *remote.StatusError
	var sourceErr *feeds.SourceError

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrEmptyRange),
		errors.Is(err, services.ErrInvalidDays),
		errors.Is(err, remote.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, errScreenNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrClosed):
		return http.StatusGone
	case errors.Is(err, services.ErrSuperseded),
		errors.Is(err, browse.ErrNotOpen),
		errors.Is(err, browse.ErrEmptyQueue),
		errors.Is(err, browse.ErrNoDetail),
		errors.Is(err, browse.ErrStackFull):
		return http.StatusConflict
	case errors.Is(err, feeds.ErrProfileIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errTooManyScreens):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &statusErr),
		errors.As(err, &sourceErr),
		errors.Is(err, remote.ErrMalformed),
		errors.Is(err, remote.ErrRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondErr logs err against the request logger and writes its mapped status.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// The client went away; nobody is listening.
		return
	}
	status := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error(), log.FieldStatusCode, status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err.Error(), log.FieldStatusCode, status)
	}
	respondError(w, status, err.Error())
}
