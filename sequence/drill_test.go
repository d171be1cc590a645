package sequence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrillAll(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(3)...)
	tg, err := tr.e.Targets()
	require.NoError(t, err)
	_, err = tr.e.SetStatus(tg[1].ID, job.Drilled)
	require.NoError(t, err)

	var results []bool
	require.NoError(t, tr.e.Start(DrillAll(fastDrill), func(ok bool) { results = append(results, ok) }))
	out := tr.e.Wait()

	require.Equal(t, Completed, out.State, out.String())
	assert.True(t, out.Success)
	assert.Equal(t, []bool{true}, results)
	assert.Equal(t, []job.Status{job.Drilled, job.Drilled, job.Drilled}, tr.statuses(t))
	assert.Equal(t, coord.Point{X: 1, Y: 1}, tr.dev.CurrentLocation())

	var texts []string
	for _, ev := range tr.eventsOf(EventLog) {
		texts = append(texts, ev.Text)
	}
	assert.Contains(t, texts, "Target [2/3] already drilled")
	assert.Contains(t, texts, "2 of 3 targets left to drill")

	var info []int
	for _, ev := range tr.eventsOf(EventProgress) {
		if ev.Info {
			info = append(info, ev.Progress)
		}
	}
	assert.Equal(t, []int{33, 100}, info)
}

func TestDrillAll_Cancel(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(5)...)

	const k = 2
	drilled := 0
	tr.e.Subscribe(func(ev Event) {
		if ev.Kind == EventStatus && ev.Target.Status == job.Drilled {
			drilled++
			if drilled == k {
				tr.e.Cancel()
			}
		}
	})

	called := false
	require.NoError(t, tr.e.Start(DrillAll(fastDrill), func(bool) { called = true }))
	out := tr.e.Wait()

	assert.Equal(t, Cancelled, out.State)
	assert.False(t, called)
	assert.Equal(t, []job.Status{job.Drilled, job.Drilled, job.Idle, job.Idle, job.Idle}, tr.statuses(t))
}

func TestDrillAll_FirstFailureAborts(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(3)...)
	tr.em.StuckDrill(true)

	require.NoError(t, tr.e.Start(DrillAll(fastDrill), nil))
	out := tr.e.Wait()

	assert.Equal(t, Completed, out.State)
	assert.False(t, out.Success)
	assert.Equal(t, []job.Status{job.Idle, job.Idle, job.Idle}, tr.statuses(t))
	assert.Equal(t, coord.Point{X: 0, Y: 1}, tr.dev.CurrentLocation(), "never moved past the first target")
}

func TestDrillAll_DeviceLost(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(3)...)
	// first target takes a move and two polls
	tr.em.FailAfter(4)

	require.NoError(t, tr.e.Start(DrillAll(fastDrill), nil))
	out := tr.e.Wait()

	assert.Equal(t, Failed, out.State)
	assert.ErrorIs(t, out.Err, ErrDeviceClosed)
	assert.Equal(t, []job.Status{job.Drilled, job.Idle, job.Idle}, tr.statuses(t))
}

func TestDrillAll_NoTargets(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{})
	assert.Equal(t, ErrNoTargets, tr.e.Start(DrillAll(fastDrill), nil))
	assert.False(t, tr.e.Busy())
}

func TestDrillTarget(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(2)...)
	tg, err := tr.e.Targets()
	require.NoError(t, err)

	err = tr.e.Start(DrillTarget(uuid.New(), fastDrill), nil)
	assert.ErrorIs(t, err, ErrUnknownTarget)
	assert.False(t, tr.e.Busy())

	require.NoError(t, tr.e.Start(DrillTarget(tg[1].ID, fastDrill), nil))
	out := tr.e.Wait()
	require.True(t, out.Success, out.String())
	assert.Equal(t, []job.Status{job.Idle, job.Drilled}, tr.statuses(t))

	var got []int
	for _, ev := range tr.eventsOf(EventProgress) {
		got = append(got, ev.Progress)
	}
	assert.Equal(t, []int{50, 75, 100}, got)

	// Next while running, then Drilled
	var seen []job.Status
	for _, ev := range tr.eventsOf(EventStatus) {
		seen = append(seen, ev.Target.Status)
	}
	assert.Equal(t, []job.Status{job.Next, job.Drilled}, seen)
}

func TestDrillTarget_Fails(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(1)...)
	tg, err := tr.e.Targets()
	require.NoError(t, err)
	_, err = tr.e.Select(tg[0].ID)
	require.NoError(t, err)
	tr.em.StuckDrill(true)

	require.NoError(t, tr.e.Start(DrillTarget(tg[0].ID, fastDrill), nil))
	out := tr.e.Wait()

	assert.Equal(t, Completed, out.State)
	assert.False(t, out.Success)
	assert.Equal(t, []job.Status{job.Selected}, tr.statuses(t), "status restored")
}

func TestDrillTarget_FailsKeepsSelection(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{}, grid(2)...)
	tg, err := tr.e.Targets()
	require.NoError(t, err)
	_, err = tr.e.Select(tg[0].ID)
	require.NoError(t, err)
	tr.em.StuckDrill(true)

	require.NoError(t, tr.e.Start(DrillTarget(tg[0].ID, fastDrill), nil))
	out := tr.e.Wait()
	require.False(t, out.Success)

	_, err = tr.e.Select(tg[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []job.Status{job.Idle, job.Selected}, tr.statuses(t), "one selection at a time")
}

func TestDrillPoint(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{})

	require.NoError(t, tr.e.Start(DrillPoint(coord.Point{X: 2, Y: 3}, fastDrill), nil))
	out := tr.e.Wait()
	assert.True(t, out.Success)
	assert.Equal(t, [2]int{3000, 4000}, tr.em.Position())
}

func TestMoveTo(t *testing.T) {
	tr := newTestRig(t, vm.DefaultConfig, Options{})

	require.NoError(t, tr.e.Start(MoveTo(coord.Point{X: -0.5, Y: 0.25}), nil))
	out := tr.e.Wait()
	assert.True(t, out.Success)
	assert.Equal(t, [2]int{500, 1250}, tr.em.Position())
}
