package sequence

import (
	"time"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
)

// DrillOptions bound the drill cycle wait loops. Zero fields take the defaults.
type DrillOptions struct {
	// Tries is the number of polls each wait loop may take, 20 by default.
	Tries int
	// Period is the sleep between polls, 50ms by default.
	Period time.Duration
}

// DefaultDrill gives the drill a second to leave the top and a second to return.
var DefaultDrill = DrillOptions{Tries: 20, Period: 50 * time.Millisecond}

func (o DrillOptions) withDefaults() DrillOptions {
	if o.Tries == 0 {
		o.Tries = DefaultDrill.Tries
	}
	if o.Period == 0 {
		o.Period = DefaultDrill.Period
	}
	return o
}

// waitTop polls until the top switch reads want. Success requires the device
// to stay open and the tries to not run out.
func waitTop(r *Run, want bool, tries int, period time.Duration) (bool, error) {
	dev := r.Device()
	for dev.State().Switches.Top != want {
		if tries == 0 {
			return false, nil
		}
		tries--
		dev.Transfer()
		if !dev.IsOpen() {
			return false, ErrDeviceClosed
		}
		err := r.Sleep(period)
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// cycle engages the drill and waits for it to leave the top, then disengages
// and waits for it to return.
func cycle(r *Run, opts DrillOptions) (bool, error) {
	dev := r.Device()

	dev.SetCycleDrill(true)
	ok, err := waitTop(r, false, opts.Tries, opts.Period)
	if !ok || err != nil {
		dev.SetCycleDrill(false)
		return false, err
	}

	dev.SetCycleDrill(false)
	return waitTop(r, true, opts.Tries, opts.Period)
}

func moveTo(r *Run, p coord.Point) error {
	dev := r.Device()
	dev.MoveTo(p.X, p.Y)
	dev.Transfer()
	if !dev.IsOpen() {
		return ErrDeviceClosed
	}
	return nil
}

// drillAt moves to p and runs one drill cycle, reporting progress at each step.
func drillAt(r *Run, p coord.Point, opts DrillOptions) (bool, error) {
	dev := r.Device()

	err := moveTo(r, p)
	if err != nil {
		return false, err
	}
	ok := dev.CheckLimitSwitches()
	if !ok {
		r.Logf("Limit switches are not properly set: %s", dev.State().Switches.Describe())
	}
	r.Progress(50, false)

	if r.Cancelled() {
		return false, nil
	}
	if ok {
		ok, err = cycleStep(r, opts, true)
		if err != nil {
			return false, err
		}
	}
	r.Progress(75, false)

	if r.Cancelled() {
		return false, nil
	}
	if ok {
		ok, err = cycleStep(r, opts, false)
		if err != nil {
			return false, err
		}
	}
	r.Progress(100, false)
	return ok, nil
}

// cycleStep runs one half of the drill cycle.
func cycleStep(r *Run, opts DrillOptions, down bool) (bool, error) {
	dev := r.Device()
	if !dev.CheckLimitSwitches() {
		return false, nil
	}
	dev.SetCycleDrill(down)
	ok, err := waitTop(r, !down, opts.Tries, opts.Period)
	if !ok && down {
		dev.SetCycleDrill(false)
	}
	return ok, err
}

// DrillPoint drills a single hole at p.
func DrillPoint(p coord.Point, opts DrillOptions) Procedure {
	opts = opts.withDefaults()
	return Procedure{
		Name: "drill",
		Run: func(r *Run) (bool, error) {
			r.Logf("Drilling at %s", p)
			return drillAt(r, p, opts)
		},
	}
}

// DrillTarget drills one target of the job. The target is marked Next while
// the run is active and Drilled on success; otherwise its status is restored.
func DrillTarget(id uuid.UUID, opts DrillOptions) Procedure {
	opts = opts.withDefaults()
	var t job.Target
	return Procedure{
		Name: "drill",
		Prepare: func(j *job.Job) (err error) {
			t, err = j.Get(id)
			return err
		},
		Run: func(r *Run) (bool, error) {
			_, err := r.SetStatus(id, job.Next)
			if err != nil {
				return false, err
			}

			r.Logf("Drilling [%d]: %s", t.Index+1, t.Location)
			ok, err := drillAt(r, t.Location, opts)

			final := t.Status
			if ok && err == nil && !r.observed {
				final = job.Drilled
				r.Logf("Task completed")
			} else if err == nil && !r.observed {
				r.Logf("Drill sequence failed")
			}
			_, serr := r.SetStatus(id, final)
			if err == nil {
				err = serr
			}
			return ok, err
		},
	}
}

// DrillAll drills every target not already Drilled, in job order.
//
// Cancellation is checked before each target. The first hole that fails
// ends the run unsuccessfully.
func DrillAll(opts DrillOptions) Procedure {
	opts = opts.withDefaults()
	var ids []uuid.UUID
	var left int
	return Procedure{
		Name: "drill-all",
		Prepare: func(j *job.Job) error {
			if j.Len() == 0 {
				return ErrNoTargets
			}
			left = j.Remaining()
			ids = ids[:0]
			for _, t := range j.Targets() {
				ids = append(ids, t.ID)
			}
			return nil
		},
		Run: func(r *Run) (bool, error) {
			dev := r.Device()
			n := len(ids)
			r.Logf("%d of %d targets left to drill", left, n)
			for i, id := range ids {
				if r.Cancelled() {
					return false, nil
				}

				t, err := r.Target(id)
				if err != nil {
					return false, err
				}
				if t.Status == job.Drilled {
					r.Logf("Target [%d/%d] already drilled", i+1, n)
					continue
				}

				sw := dev.State().Switches
				if !sw.Sane() || !sw.Top || sw.Bottom {
					r.Logf("Drill not ready: switches %s", sw.Describe())
					return false, nil
				}

				_, err = r.SetStatus(id, job.Next)
				if err != nil {
					return false, err
				}
				r.Logf("Moving to [%d/%d]: %s", i+1, n, t.Location)
				err = moveTo(r, t.Location)
				var ok bool
				if err == nil {
					r.Logf("Drilling...")
					ok, err = drillCycle(r, opts)
				}

				final := t.Status
				if ok && err == nil {
					final = job.Drilled
				}
				_, serr := r.SetStatus(id, final)
				if err == nil {
					err = serr
				}
				if err != nil {
					return false, err
				}
				if !ok {
					r.Logf("Drill sequence failed at [%d/%d]", i+1, n)
					return false, nil
				}
				r.Progress(100*(i+1)/n, true)
			}

			r.Progress(100, false)
			r.Logf("Task completed")
			return true, nil
		},
	}
}

// drillCycle is the drill cycle without progress reports, used inline by DrillAll.
func drillCycle(r *Run, opts DrillOptions) (bool, error) {
	if !r.Device().CheckLimitSwitches() {
		return false, nil
	}
	return cycle(r, opts)
}

// MoveTo moves to p under the engine so it can't interleave with a run.
func MoveTo(p coord.Point) Procedure {
	return Procedure{
		Name: "move",
		Run: func(r *Run) (bool, error) {
			r.Logf("Moving to: %s", p)
			err := moveTo(r, p)
			if err != nil {
				return false, err
			}
			r.Progress(100, false)
			if !r.Device().CheckLimitSwitches() {
				r.Logf("Limit switches are not properly set: %s", r.Device().State().Switches.Describe())
				return false, nil
			}
			return true, nil
		},
	}
}
