package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values  map[string]string
	failSet error
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string]string{}}
}

func (m *mapStore) GetBool(_ context.Context, key string) (bool, bool, error) {
	v, ok := m.values[key]
	return v == "true", ok, nil
}

func (m *mapStore) SetBool(_ context.Context, key string, value bool) error {
	if m.failSet != nil {
		return m.failSet
	}
	if value {
		m.values[key] = "true"
	} else {
		m.values[key] = "false"
	}
	return nil
}

func (m *mapStore) GetString(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mapStore) SetString(_ context.Context, key, value string) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.values[key] = value
	return nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestToggle_EnableThenDisableRestoresEnd(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	toggle := NewToggle(store)
	today := june(12)

	st, err := toggle.Enable(ctx, june(20), today)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, june(30), st.RangeEnd)
	assert.Equal(t, "2025-06-20", store.values[KeyEndBeforeProjection])

	// A second enable does not overwrite the remembered end.
	st, err = toggle.Enable(ctx, june(30), today)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, "2025-06-20", store.values[KeyEndBeforeProjection])

	st, err = toggle.Disable(ctx, june(30))
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.Equal(t, june(20), st.RangeEnd)
	_, remembered := store.values[KeyEndBeforeProjection]
	assert.False(t, remembered)

	on, err := toggle.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestToggle_EnableOutsideCurrentMonthForcesOff(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	toggle := NewToggle(store)

	st, err := toggle.Enable(ctx, civil.Date{Year: 2025, Month: time.May, Day: 31}, june(12))
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.True(t, st.ForcedOff)
	assert.Equal(t, "false", store.values[KeyShowProjectedGrowth])
}

func TestToggle_DisableWithoutRememberedEnd(t *testing.T) {
	toggle := NewToggle(newMapStore())
	st, err := toggle.Disable(context.Background(), june(18))
	require.NoError(t, err)
	assert.Equal(t, june(18), st.RangeEnd)
}

func TestToggle_Reconcile(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	toggle := NewToggle(store)

	_, err := toggle.Enable(ctx, june(20), june(12))
	require.NoError(t, err)

	st, err := toggle.Reconcile(ctx, june(30), june(12))
	require.NoError(t, err)
	assert.True(t, st.Enabled)

	july := civil.Date{Year: 2025, Month: time.July, Day: 31}
	st, err = toggle.Reconcile(ctx, july, june(12))
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.True(t, st.ForcedOff)
	assert.Equal(t, july, st.RangeEnd)
}

func TestToggle_StoreErrorsPropagate(t *testing.T) {
	store := newMapStore()
	store.failSet = errors.New("disk full")
	toggle := NewToggle(store)

	_, err := toggle.Enable(context.Background(), june(20), june(12))
	assert.ErrorContains(t, err, "disk full")
}
