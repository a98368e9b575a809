package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/remote"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, time.Second, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestClient_RecurringEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recurring/calendar", r.URL.Path)
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		assert.Equal(t, "6", r.URL.Query().Get("month"))
		assert.Equal(t, "3", r.URL.Query().Get("min_occ"))
		assert.Equal(t, "false", r.URL.Query().Get("include_stale"))
		_, _ = w.Write([]byte(`{"ok": true, "events": [
			{"date": "2025-06-15", "merchant": "Gym", "amount": 60, "cadence": "monthly", "account_id": -1},
			{"date": "2025-06-28", "merchant": "INTEREST", "amount": "15.02", "cadence": "interest", "type": "Interest", "account_id": 3}
		]}`))
	})

	recs, err := c.RecurringEvents(context.Background(), remote.RecurringQuery{
		Window:         core.MonthWindow{Year: 2025, Month: time.June},
		MinOccurrences: 3,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Nil(t, recs[0].AccountID.ID)
	assert.Equal(t, 15.02, recs[1].Amount.Float())
	require.NotNil(t, recs[1].AccountID.ID)
	assert.Equal(t, 3, *recs[1].AccountID.ID)
}

func TestClient_RecurringEventsKeepsGoodRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "events": [
			{"date": "2025-06-15", "merchant": "Gym", "amount": 60},
			{"date": 20250616, "merchant": "Numeric date", "amount": 10},
			{"date": "2025-06-17", "merchant": 42, "amount": 10},
			"not an object"
		]}`))
	})

	recs, err := c.RecurringEvents(context.Background(), remote.RecurringQuery{
		Window: core.MonthWindow{Year: 2025, Month: time.June},
	})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "2025-06-15", recs[0].Date)
	assert.Equal(t, "Gym", recs[0].Merchant)
	for i, rec := range recs[1:] {
		assert.Equal(t, remote.RecurringRecord{}, rec, "record %d", i+1)
	}
}

func TestClient_PaychecksKeepsGoodRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events": [
			{"date": ["2025-06-13"], "amount": 1300},
			{"date": "2025-06-30", "pay_target": "2025-07-01", "merchant": "DFAS", "amount": 1300}
		]}`))
	})

	recs, err := c.Paychecks(context.Background(), core.MonthWindow{Year: 2025, Month: time.June}, core.PayProfile{Paygrade: "E5"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[0].Date)
	assert.Equal(t, "2025-07-01", recs[1].PayTarget)
}

func TestClient_EventsNotAnArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "events": {"date": "2025-06-15"}}`))
	})

	_, err := c.RecurringEvents(context.Background(), remote.RecurringQuery{
		Window: core.MonthWindow{Year: 2025, Month: time.June},
	})
	assert.ErrorIs(t, err, remote.ErrMalformed)
}

func TestClient_RecurringEventsRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "error": "month must be 1..12"}`))
	})

	_, err := c.RecurringEvents(context.Background(), remote.RecurringQuery{Window: core.MonthWindow{Year: 2025, Month: 13}})
	assert.ErrorIs(t, err, remote.ErrRejected)
}

func TestClient_PaychecksSendsNormalizedProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/les/paychecks", r.URL.Path)

		var body struct {
			Year    int             `json:"year"`
			Month   int             `json:"month"`
			Profile core.PayProfile `json:"profile"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 7, body.Month)
		assert.Equal(t, "E5", body.Profile.Paygrade)

		_, _ = w.Write([]byte(`{"events": [{"date": "2025-06-30", "pay_target": "2025-07-01", "merchant": "MIL PAY (EOM)", "cadence": "paycheck", "amount": 2600, "type": "Income", "account_id": 3, "spillover": true}]}`))
	})

	recs, err := c.Paychecks(context.Background(), core.MonthWindow{Year: 2025, Month: time.July}, core.PayProfile{Paygrade: "e-5", ServiceStart: "2020-01-01"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Spillover)
	assert.Equal(t, "2025-07-01", recs[0].PayTarget)
}

func TestClient_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusBadGateway)
	})

	_, err := c.MonthBudget(context.Background(), remote.BudgetQuery{})
	var se *remote.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Contains(t, se.Error(), "db down")
}

func TestClient_Malformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Flagged(context.Background(), remote.QueueQuery{})
	assert.ErrorIs(t, err, remote.ErrMalformed)
}

func TestClient_FlaggedClampsLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		assert.Equal(t, "recent", r.URL.Query().Get("mode"))
		_, _ = w.Write([]byte(`[{"id": "abc", "merchant": "Shell", "amount": -40.5, "postedDate": "06/01/25"}]`))
	})

	recs, err := c.Flagged(context.Background(), remote.QueueQuery{Limit: 9000, Mode: "RECENT"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, remote.RecordID("abc"), recs[0].ID)
}

func TestClient_SavingsGoal(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"mode": "percent", "value": 10}`))
		})
		g, err := c.SavingsGoal(context.Background())
		require.NoError(t, err)
		require.NotNil(t, g)
		assert.Equal(t, 10.0, g.Value.Float())
	})

	t.Run("not found means none", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		g, err := c.SavingsGoal(context.Background())
		require.NoError(t, err)
		assert.Nil(t, g)
	})
}

func TestClient_CreateRule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var rule remote.Rule
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rule))
		assert.Equal(t, []string{"shell"}, rule.Keywords)
		assert.True(t, rule.ApplyNow)
		_, _ = w.Write([]byte(`{"ok": true, "applied": 4}`))
	})

	applied, err := c.CreateRule(context.Background(), remote.Rule{Category: "Fuel", Keywords: []string{" shell ", ""}, ApplyNow: true})
	require.NoError(t, err)
	assert.Equal(t, 4, applied)
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com", time.Second, nil, nil)
	assert.Error(t, err)
}
