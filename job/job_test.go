package job

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob() *Job {
	return New([]coord.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}})
}

func TestNew(t *testing.T) {
	j := testJob()

	require.Equal(t, 3, j.Len())
	for i, tg := range j.Targets() {
		assert.Equal(t, i, tg.Index)
		assert.Equal(t, Idle, tg.Status)
		assert.NotEqual(t, uuid.Nil, tg.ID)
	}
}

func TestJob_Reorder(t *testing.T) {
	j := testJob()
	tg := j.Targets()

	_, err := j.SetStatus(tg[2].ID, Drilled)
	require.NoError(t, err)

	err = j.Reorder([]uuid.UUID{tg[2].ID, tg[0].ID, tg[1].ID})
	require.NoError(t, err)

	res := j.Targets()
	assert.Equal(t, tg[2].ID, res[0].ID)
	assert.Equal(t, Drilled, res[0].Status)
	for i, r := range res {
		assert.Equal(t, i, r.Index, "index rebuilt")
	}
	assert.Equal(t, 1, j.byID[tg[0].ID])

	assert.ErrorIs(t, j.Reorder([]uuid.UUID{tg[0].ID, tg[0].ID, tg[1].ID}), ErrNotPermutation)
	assert.ErrorIs(t, j.Reorder([]uuid.UUID{tg[0].ID}), ErrNotPermutation)
	assert.ErrorIs(t, j.Reorder([]uuid.UUID{tg[0].ID, tg[1].ID, uuid.New()}), ErrNotPermutation)

	// failed reorders leave the list alone
	assert.Equal(t, res, j.Targets())
}

func TestJob_SetStatus(t *testing.T) {
	j := testJob()

	_, err := j.SetStatus(uuid.New(), Drilled)
	assert.ErrorIs(t, err, ErrUnknownTarget)

	id := j.Targets()[1].ID
	tg, err := j.SetStatus(id, Next)
	require.NoError(t, err)
	assert.Equal(t, Next, tg.Status)
	assert.Equal(t, 3, j.Remaining())

	_, err = j.SetStatus(id, Drilled)
	require.NoError(t, err)
	assert.Equal(t, 2, j.Remaining())
}

func TestJob_Select(t *testing.T) {
	j := testJob()
	tg := j.Targets()

	_, err := j.SetStatus(tg[0].ID, Drilled)
	require.NoError(t, err)

	_, err = j.Select(tg[0].ID)
	require.NoError(t, err)
	_, err = j.Select(tg[1].ID)
	require.NoError(t, err)

	res := j.Targets()
	assert.Equal(t, Drilled, res[0].Status, "previous selection restored")
	assert.Equal(t, Selected, res[1].Status)
}

func TestJob_SelectedThroughSetStatus(t *testing.T) {
	j := testJob()
	tg := j.Targets()

	_, err := j.Select(tg[0].ID)
	require.NoError(t, err)

	// a run marks the selection Next, then puts it back
	_, err = j.SetStatus(tg[0].ID, Next)
	require.NoError(t, err)
	_, err = j.SetStatus(tg[0].ID, Selected)
	require.NoError(t, err)

	_, err = j.Select(tg[1].ID)
	require.NoError(t, err)
	res := j.Targets()
	assert.Equal(t, Idle, res[0].Status, "pre-selection status restored")
	assert.Equal(t, Selected, res[1].Status)

	// setting Selected directly moves the selection
	_, err = j.SetStatus(tg[2].ID, Selected)
	require.NoError(t, err)
	res = j.Targets()
	assert.Equal(t, []Status{Idle, Idle, Selected}, []Status{res[0].Status, res[1].Status, res[2].Status})

	// a drilled selection is no longer tracked
	_, err = j.SetStatus(tg[2].ID, Drilled)
	require.NoError(t, err)
	_, err = j.Select(tg[0].ID)
	require.NoError(t, err)
	assert.Equal(t, Drilled, j.Targets()[2].Status)
}

func TestJob_Reset(t *testing.T) {
	j := testJob()
	tg := j.Targets()

	_, err := j.SetStatus(tg[0].ID, Drilled)
	require.NoError(t, err)
	_, err = j.Select(tg[1].ID)
	require.NoError(t, err)

	j.Reset()
	assert.Equal(t, 3, j.Remaining())
	for _, r := range j.Targets() {
		assert.Equal(t, Idle, r.Status)
	}

	// the reset selection is not restored by the next select
	_, err = j.Select(tg[2].ID)
	require.NoError(t, err)
	res, err := j.Get(tg[1].ID)
	require.NoError(t, err)
	assert.Equal(t, Idle, res.Status)
}

func TestJob_Offset(t *testing.T) {
	j := testJob()
	j.Offset(coord.Point{X: 1, Y: 1})

	res := j.Targets()
	assert.Equal(t, coord.Point{X: -1, Y: -1}, res[0].Location)
	assert.Equal(t, coord.Point{X: 0, Y: -1}, res[1].Location)
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{Idle, Selected, Next, Drilled} {
		data, err := s.MarshalText()
		require.NoError(t, err)

		var res Status
		require.NoError(t, res.UnmarshalText(data))
		assert.Equal(t, s, res)
	}

	_, err := ParseStatus("bogus")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Status(42).String())
}
