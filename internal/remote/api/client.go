// Package api implements the remote ports over the finance API's JSON endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/remote"
)

const maxErrorBody = 512

// Client talks to the finance API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Logger
}

// New creates a client for baseURL. A nil httpClient gets a pooled default.
func New(baseURL string, timeout time.Duration, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = newHTTPClientWithPooling(timeout)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
		logger:  logger.WithComponent(log.ComponentRemote),
	}, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling,
// keep-alive and bounded timeouts. Every calendar view fans out one request
// per window and source to the same host, so idle connections are reused.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

type eventsEnvelope struct {
	OK     *bool             `json:"ok"`
	Error  string            `json:"error"`
	Events []json.RawMessage `json:"events"`
}

func (e eventsEnvelope) check(path string) error {
	if e.OK != nil && !*e.OK {
		return fmt.Errorf("%s: %w: %s", path, remote.ErrRejected, e.Error)
	}
	return nil
}

// decodeRecords decodes each event on its own. A record that does not decode
// is returned as the zero value, which normalization drops and counts like
// any other record without a date.
func decodeRecords[T any](ctx context.Context, logger *log.Logger, path string, raw []json.RawMessage) []T {
	out := make([]T, len(raw))
	malformed := 0
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			var zero T
			out[i] = zero
			malformed++
		}
	}
	if malformed > 0 {
		logger.WarnContext(ctx, "Malformed records in feed",
			log.FieldPath, path,
			"malformed", malformed,
			"records", len(raw))
	}
	return out
}

// RecurringEvents implements remote.RecurringFeed.
func (c *Client) RecurringEvents(ctx context.Context, q remote.RecurringQuery) ([]remote.RecurringRecord, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(q.Window.Year))
	params.Set("month", strconv.Itoa(int(q.Window.Month)))
	params.Set("min_occ", strconv.Itoa(q.MinOccurrences))
	params.Set("include_stale", strconv.FormatBool(q.IncludeStale))

	var out eventsEnvelope
	if err := c.do(ctx, http.MethodGet, "/recurring/calendar", params, nil, &out); err != nil {
		return nil, err
	}
	if err := out.check("/recurring/calendar"); err != nil {
		return nil, err
	}
	return decodeRecords[remote.RecurringRecord](ctx, c.logger, "/recurring/calendar", out.Events), nil
}

type paycheckRequest struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Profile core.PayProfile `json:"profile"`
}

// Paychecks implements remote.PaycheckFeed.
func (c *Client) Paychecks(ctx context.Context, window core.MonthWindow, profile core.PayProfile) ([]remote.PaycheckRecord, error) {
	body := paycheckRequest{
		Year:    window.Year,
		Month:   int(window.Month),
		Profile: profile.Normalized(),
	}

	var out eventsEnvelope
	if err := c.do(ctx, http.MethodPost, "/les/paychecks", nil, body, &out); err != nil {
		return nil, err
	}
	if err := out.check("/les/paychecks"); err != nil {
		return nil, err
	}
	return decodeRecords[remote.PaycheckRecord](ctx, c.logger, "/les/paychecks", out.Events), nil
}

// MonthBudget implements remote.BudgetReader.
func (c *Client) MonthBudget(ctx context.Context, q remote.BudgetQuery) (remote.BudgetRecord, error) {
	params := url.Values{}
	params.Set("min_occ", strconv.Itoa(q.MinOccurrences))
	params.Set("include_stale", strconv.FormatBool(q.IncludeStale))

	var out remote.BudgetRecord
	if err := c.do(ctx, http.MethodGet, "/month-budget", params, nil, &out); err != nil {
		return remote.BudgetRecord{}, err
	}
	return out, nil
}

// SavingsGoal implements remote.SavingsGoalReader. A 404 means no goal.
func (c *Client) SavingsGoal(ctx context.Context) (*remote.SavingsGoalRecord, error) {
	var out *remote.SavingsGoalRecord
	err := c.do(ctx, http.MethodGet, "/settings/savings-goal", nil, nil, &out)
	var se *remote.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flagged implements remote.QueueReader.
func (c *Client) Flagged(ctx context.Context, q remote.QueueQuery) ([]remote.FlaggedRecord, error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("mode", q.Mode)

	var out []remote.FlaggedRecord
	if err := c.do(ctx, http.MethodGet, "/unassigned", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ruleResponse struct {
	OK      *bool  `json:"ok"`
	Applied int    `json:"applied"`
	Detail  string `json:"detail"`
}

// CreateRule implements remote.RuleWriter.
func (c *Client) CreateRule(ctx context.Context, r remote.Rule) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	r.Keywords = r.CleanKeywords()

	var out ruleResponse
	if err := c.do(ctx, http.MethodPost, "/rules", nil, r, &out); err != nil {
		return 0, err
	}
	if out.OK != nil && !*out.OK {
		return 0, fmt.Errorf("/rules: %w: %s", remote.ErrRejected, out.Detail)
	}
	return out.Applied, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Remote call completed",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &remote.StatusError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, remote.ErrMalformed, err)
	}
	return nil
}
