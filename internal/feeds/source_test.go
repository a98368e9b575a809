package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/remote"
	"cashflow/internal/remote/api"
	"cashflow/internal/remote/memory"
)

var june = core.MonthWindow{Year: 2025, Month: time.June}

func decodeRecurring(t *testing.T, data string) []remote.RecurringRecord {
	t.Helper()
	var recs []remote.RecurringRecord
	require.NoError(t, json.Unmarshal([]byte(data), &recs))
	return recs
}

func TestNormalizeRecurring(t *testing.T) {
	recs := decodeRecurring(t, `[
		{"date": "2025-06-15", "merchant": "Gym", "category": "Health", "amount": 60, "cadence": "Monthly", "account_id": -1},
		{"date": "2025-06-28", "merchant": "INTEREST", "amount": "15.02", "cadence": "interest", "type": "Interest", "account_id": 3},
		{"date": "2025-06-20", "merchant": "", "merchant_display": "Rent Co", "amount": -1500, "account_id": null},
		{"date": "", "merchant": "No Date", "amount": 10},
		{"date": "not-a-date", "merchant": "Bad", "amount": 10},
		{"date": "2025-06-21", "merchant": "Weird", "amount": "abc"}
	]`)

	events, dropped := normalizeRecurring(recs)
	require.Len(t, events, 4)
	assert.Equal(t, 2, dropped)

	gym := events[0]
	assert.Equal(t, core.KindExpense, gym.Kind)
	assert.Equal(t, -60.0, gym.Amount)
	assert.Equal(t, "monthly", gym.Cadence)
	assert.Nil(t, gym.AccountID)
	assert.Equal(t, core.SourceRecurring, gym.Source)

	interest := events[1]
	assert.Equal(t, core.KindIncome, interest.Kind)
	assert.Equal(t, 15.02, interest.Amount)
	assert.Equal(t, "Interest", interest.CategoryLabel())

	rent := events[2]
	assert.Equal(t, "Rent Co", rent.Merchant)
	assert.Equal(t, -1500.0, rent.Amount, "already-signed outflow keeps its direction")

	assert.Zero(t, events[3].Amount, "non-numeric amount coerces to zero")
}

func TestNormalizePaycheck(t *testing.T) {
	var recs []remote.PaycheckRecord
	require.NoError(t, json.Unmarshal([]byte(`[
		{"date": "2025-06-30", "pay_target": "2025-07-01", "merchant": "MIL PAY (EOM)", "cadence": "paycheck", "amount": 2600, "type": "Income", "account_id": 3},
		{"date": "2025-06-13", "pay_target": "bogus", "merchant": "MIL PAY (Mid-Month)", "amount": -1300, "account_id": 3}
	]`), &recs))

	events, dropped := normalizePaycheck(recs)
	require.Len(t, events, 2)
	assert.Zero(t, dropped)

	require.NotNil(t, events[0].PayTarget)
	assert.Equal(t, "2025-07-01", events[0].PayTarget.String())
	assert.Equal(t, 2600.0, events[0].Amount)

	assert.Nil(t, events[1].PayTarget)
	assert.Equal(t, core.CadencePaycheck, events[1].Cadence)
	assert.Equal(t, 1300.0, events[1].Amount, "paycheck deposits are always inflows")
}

func TestRecurringSource_FetchWindow(t *testing.T) {
	store := memory.New()
	store.SetRecurring(june, decodeRecurring(t, `[{"date": "2025-06-15", "merchant": "Gym", "amount": 60}]`)...)

	res := NewRecurringSource(store).FetchWindow(context.Background(), june, FetchContext{MinOccurrences: 3})
	require.True(t, res.OK())
	assert.Equal(t, core.SourceRecurring, res.Source)
	assert.Equal(t, june, res.Window)
	assert.Len(t, res.Events, 1)
}

func TestRecurringSource_BadRecordDroppedAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true, "events": [
			{"date": "2025-06-15", "merchant": "Gym", "amount": 60},
			{"date": 20250616, "merchant": "Numeric date", "amount": 10},
			{"date": "2025-06-17", "merchant": 42, "amount": 10},
			{"date": "2025-06-20", "merchant": "Insurance", "amount": "35.5"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL, time.Second, srv.Client(), nil)
	require.NoError(t, err)

	res := NewRecurringSource(client).FetchWindow(context.Background(), june, FetchContext{MinOccurrences: 3})
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Gym", res.Events[0].Merchant)
	assert.Equal(t, "Insurance", res.Events[1].Merchant)
	assert.Equal(t, -35.5, res.Events[1].Amount)
}

func TestRecurringSource_FailureIsCarried(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"transport", errors.New("connection refused"), KindUnavailable},
		{"status", &remote.StatusError{Path: "/recurring/calendar", StatusCode: 500}, KindUnavailable},
		{"malformed", fmt.Errorf("x: %w", remote.ErrMalformed), KindMalformed},
		{"rejected", fmt.Errorf("x: %w", remote.ErrRejected), KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			store.FailRecurring(june, tt.err)

			res := NewRecurringSource(store).FetchWindow(context.Background(), june, FetchContext{})
			require.False(t, res.OK())
			assert.Empty(t, res.Events)
			assert.Equal(t, tt.want, res.Err.Kind)
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestPaycheckSource_SkipsWithoutProfile(t *testing.T) {
	store := memory.New()
	src := NewPaycheckSource(store)

	for name, profile := range map[string]*core.PayProfile{
		"nil":        nil,
		"incomplete": {Paygrade: "E5"},
	} {
		t.Run(name, func(t *testing.T) {
			res := src.FetchWindow(context.Background(), june, FetchContext{Profile: profile})
			require.NotNil(t, res.Err)
			assert.Equal(t, KindSkipped, res.Err.Kind)
			assert.ErrorIs(t, res.Err, ErrProfileIncomplete)
			assert.Empty(t, res.Events)
		})
	}
	assert.Zero(t, store.Calls("paycheck", june), "feed must not be called without a profile")
}

func TestPaycheckSource_FetchWindow(t *testing.T) {
	store := memory.New()
	store.SetPaychecks(june, remote.PaycheckRecord{Date: "2025-06-13", PayTarget: "2025-06-15", Merchant: "MIL PAY (Mid-Month)", Cadence: "paycheck", Amount: 1300})

	profile := &core.PayProfile{Paygrade: "E-5", ServiceStart: "2020-01-01"}
	res := NewPaycheckSource(store).FetchWindow(context.Background(), june, FetchContext{Profile: profile})
	require.True(t, res.OK())
	require.Len(t, res.Events, 1)
	assert.Equal(t, core.KindIncome, res.Events[0].Kind)
}

func TestFetchContext_Fingerprint(t *testing.T) {
	a := FetchContext{MinOccurrences: 3, Profile: &core.PayProfile{Paygrade: "E-5", ServiceStart: "2020-01-01"}}
	b := FetchContext{MinOccurrences: 3, Profile: &core.PayProfile{Paygrade: "e5", ServiceStart: "2020-01-01"}}
	c := FetchContext{MinOccurrences: 4}

	assert.Equal(t, a.Fingerprint(core.SourcePaycheck), b.Fingerprint(core.SourcePaycheck))
	assert.NotEqual(t, a.Fingerprint(core.SourceRecurring), c.Fingerprint(core.SourceRecurring))
	assert.Equal(t, "profile=none", c.Fingerprint(core.SourcePaycheck))
}
