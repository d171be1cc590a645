package sequence

import (
	"time"

	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine"
)

// HomingOptions tune the origin seek. Zero fields take the defaults.
type HomingOptions struct {
	// CoarseStep is the seek step toward the min switch, 30 steps by default.
	CoarseStep int
	// FineStep is the back-off step away from the switch, 1 by default.
	FineStep int

	// Bound is the maximum number of moves per pass, one turn (200 steps) by default.
	Bound int

	CoarseDelay time.Duration
	FineDelay   time.Duration
}

// DefaultHoming is a 200 step motor seeking 30 steps at a time.
var DefaultHoming = HomingOptions{
	CoarseStep:  30,
	FineStep:    1,
	Bound:       200,
	CoarseDelay: 10 * time.Millisecond,
	FineDelay:   50 * time.Millisecond,
}

func (o HomingOptions) withDefaults() HomingOptions {
	if o.CoarseStep == 0 {
		o.CoarseStep = DefaultHoming.CoarseStep
	}
	if o.FineStep == 0 {
		o.FineStep = DefaultHoming.FineStep
	}
	if o.Bound == 0 {
		o.Bound = DefaultHoming.Bound
	}
	if o.CoarseDelay == 0 {
		o.CoarseDelay = DefaultHoming.CoarseDelay
	}
	if o.FineDelay == 0 {
		o.FineDelay = DefaultHoming.FineDelay
	}
	return o
}

func minSwitch(dev machine.Device, a machine.Axis) bool {
	sw := dev.State().Switches
	if a == machine.X {
		return sw.XMin
	}
	return sw.YMin
}

func axisMove(a machine.Axis, n int) (dx, dy int) {
	if a == machine.X {
		return n, 0
	}
	return 0, n
}

// seek moves an axis by step until its min switch reads want, at most bound times.
func seek(r *Run, a machine.Axis, want bool, step, bound int, delay time.Duration) (bool, error) {
	dev := r.Device()
	for n := 0; minSwitch(dev, a) != want; n++ {
		if n == bound {
			return false, nil
		}
		dev.MoveBy(axisMove(a, step))
		err := r.Sleep(delay)
		if err != nil {
			return false, err
		}
		dev.Transfer()
		if !dev.IsOpen() {
			return false, ErrDeviceClosed
		}
	}
	return true, nil
}

// Home finds the min switch of each axis and makes it the logical zero.
//
// Each axis is seeked coarsely until its switch triggers, then backed off
// one step at a time until it releases, which puts the edge within a step.
func Home(opts HomingOptions) Procedure {
	opts = opts.withDefaults()
	return Procedure{
		Name: "home",
		Run: func(r *Run) (bool, error) {
			dev := r.Device()

			// get within an inch of the origin first
			st := dev.State()
			var back [2]int
			for a := range back {
				if scale := st.Calib[a].Scale; st.Rel[a] > scale {
					back[a] = st.Rel[a] - scale
				}
			}
			dev.MoveBy(-back[machine.X], -back[machine.Y])

			if !dev.CheckLimitSwitches() {
				r.Logf("Limit switches are not properly set: %s", dev.State().Switches.Describe())
				return false, nil
			}
			r.Progress(30, false)

			passes := []struct {
				axis  machine.Axis
				want  bool
				step  int
				delay time.Duration
			}{
				{machine.X, true, -opts.CoarseStep, opts.CoarseDelay},
				{machine.X, false, opts.FineStep, opts.FineDelay},
				{machine.Y, true, -opts.CoarseStep, opts.CoarseDelay},
				{machine.Y, false, opts.FineStep, opts.FineDelay},
			}
			for i, p := range passes {
				if r.Cancelled() {
					return false, nil
				}
				ok, err := seek(r, p.axis, p.want, p.step, opts.Bound, p.delay)
				if err != nil {
					return false, err
				}
				if !ok {
					r.Logf("Origin not found on %s (out of reach or farther than expected)", p.axis)
					return false, nil
				}
				r.Progress(45+15*i, false)
			}
			if r.Cancelled() {
				return false, nil
			}

			var loc coord.Point
			err := r.Do(func(_ *job.Job) {
				loc = dev.CurrentLocation()
				dev.Zero(machine.X, 0)
				dev.Zero(machine.Y, 0)
			})
			if err != nil {
				return false, err
			}
			r.Logf("Location set to zero, origin was found at X=%.3f Y=%.3f", loc.X, loc.Y)
			r.Progress(100, false)
			return true, nil
		},
	}
}
