package http

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"cashflow/internal/core"
	"cashflow/internal/remote"
	"cashflow/internal/services"
)

// windowRequest selects a month. Zero year or month falls back to today's.
type windowRequest struct {
	Year    int              `json:"year"`
	Month   int              `json:"month"`
	Profile *core.PayProfile `json:"profile,omitempty"`
}

func (req windowRequest) window(today civil.Date) (core.MonthWindow, error) {
	year, month := req.Year, req.Month
	if year == 0 {
		year = today.Year
	}
	if month == 0 {
		month = int(today.Month)
	}
	return core.NewWindow(year, month)
}

type upcomingRequest struct {
	Days      int              `json:"days"`
	AccountID *int             `json:"account_id,omitempty"`
	Profile   *core.PayProfile `json:"profile,omitempty"`
}

type dayRequest struct {
	Date    string           `json:"date"`
	Profile *core.PayProfile `json:"profile,omitempty"`
}

type projectionRequest struct {
	Actual  []core.SeriesPoint `json:"actual"`
	End     string             `json:"end"`
	Profile *core.PayProfile   `json:"profile,omitempty"`
}

// toService resolves the displayed range end, defaulting to the last actual
// point.
func (req projectionRequest) toService() (services.ProjectionRequest, error) {
	out := services.ProjectionRequest{Actual: req.Actual, Profile: req.Profile}
	switch {
	case strings.TrimSpace(req.End) != "":
		end, err := parseDate(req.End)
		if err != nil {
			return out, err
		}
		out.RangeEnd = end
	case len(req.Actual) > 0:
		out.RangeEnd = req.Actual[len(req.Actual)-1].Date
	default:
		return out, fmt.Errorf("%w: end or actual series is required", errBadRequest)
	}
	return out, nil
}

type profileRequest struct {
	Profile *core.PayProfile `json:"profile,omitempty"`
}

type browseRequest struct {
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
}

func (req browseRequest) query() remote.QueueQuery {
	return remote.QueueQuery{Mode: strings.TrimSpace(req.Mode), Limit: req.Limit}
}

// browseQueryFromURL reads mode and limit query parameters; junk limits are
// ignored and fall back to the configured default.
func browseQueryFromURL(get func(string) string) remote.QueueQuery {
	q := remote.QueueQuery{Mode: strings.TrimSpace(get("mode"))}
	if v := strings.TrimSpace(get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	return q
}

type toggleRequest struct {
	Enabled  bool   `json:"enabled"`
	RangeEnd string `json:"range_end"`
}

func parseDate(s string) (civil.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return d, nil
}
