package browse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeList struct {
	lists [][]string
	calls int
	err   error
}

func (f *fakeList) fetch(_ context.Context, _ string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.lists[min(f.calls, len(f.lists)-1)]
	f.calls++
	return out, nil
}

func identity(s string) string { return s }

func TestController_ClampsAtEnds(t *testing.T) {
	f := &fakeList{lists: [][]string{{"a", "b", "c", "d", "e"}}}
	q := NewController(f.fetch, identity)

	v, err := q.Open(context.Background(), "freq:25")
	require.NoError(t, err)
	assert.Equal(t, Loaded, v.State)
	assert.Equal(t, "1 / 5", v.Counter)
	assert.False(t, v.HasPrev)

	v = q.Prev()
	assert.Equal(t, 0, v.Index)

	for i := 0; i < 4; i++ {
		v = q.Next()
	}
	assert.Equal(t, 4, v.Index)
	assert.False(t, v.HasNext)

	v = q.Next()
	assert.Equal(t, 4, v.Index, "no wraparound")
	require.NotNil(t, v.Current)
	assert.Equal(t, "e", *v.Current)
}

func TestController_AfterMutationKeepsPlace(t *testing.T) {
	f := &fakeList{lists: [][]string{{"A", "B", "C"}, {"a", "b", "x"}}}
	q := NewController(f.fetch, identity)

	_, err := q.Open(context.Background(), "sig")
	require.NoError(t, err)
	q.Next()

	v, err := q.AfterMutation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, "b", *v.Current)
}

func TestController_AfterMutationResetsWhenRecordGone(t *testing.T) {
	f := &fakeList{lists: [][]string{{"A", "B", "C"}, {"A", "C", "D"}}}
	q := NewController(f.fetch, identity)

	_, err := q.Open(context.Background(), "sig")
	require.NoError(t, err)
	q.Next()

	v, err := q.AfterMutation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loaded, v.State)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, "A", *v.Current)
}

func TestController_EmptyStates(t *testing.T) {
	f := &fakeList{lists: [][]string{{}, {"A"}, {}}}
	q := NewController(f.fetch, identity)

	_, err := q.AfterMutation(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = q.Current()
	assert.ErrorIs(t, err, ErrNotOpen)

	v, err := q.Open(context.Background(), "sig")
	require.NoError(t, err)
	assert.Equal(t, Empty, v.State)
	assert.Nil(t, v.Current)
	_, err = q.Current()
	assert.ErrorIs(t, err, ErrEmptyQueue)

	v = q.Next()
	assert.Equal(t, Empty, v.State)

	v, err = q.AfterMutation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loaded, v.State)

	v, err = q.AfterMutation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Empty, v.State)
}

func TestController_FetchErrorKeepsState(t *testing.T) {
	f := &fakeList{lists: [][]string{{"A", "B"}}}
	q := NewController(f.fetch, identity)

	_, err := q.Open(context.Background(), "sig")
	require.NoError(t, err)
	q.Next()

	f.err = errors.New("boom")
	v, err := q.AfterMutation(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, v.Index)

	_, err = q.Open(context.Background(), "other")
	assert.Error(t, err)
	assert.False(t, q.Stale("sig"))
	assert.True(t, q.Stale("other"))
}

func TestModalStack(t *testing.T) {
	var s ModalStack[string]

	_, _, err := s.Pop()
	assert.ErrorIs(t, err, ErrNoDetail)

	require.NoError(t, s.Push("list"))
	require.NoError(t, s.Push("detail"))
	assert.ErrorIs(t, s.Push("another"), ErrStackFull)

	top, ok := s.Top()
	assert.True(t, ok)
	assert.Equal(t, "detail", top)

	revealed, ok, err := s.Pop()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "list", revealed)

	_, ok, err = s.Pop()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, s.Depth())
}

func TestState_Text(t *testing.T) {
	for _, st := range []State{Idle, Loaded, Empty} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var bad State
	assert.Error(t, bad.UnmarshalText([]byte("open")))
}
