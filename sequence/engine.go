// Package sequence runs long hardware procedures (homing, drilling) one at a time.
package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrBusy is returned when a run is already active.
	ErrBusy = errors.New("a run is already active")

	// ErrNotReady is returned when the device is closed or its switches are not sane.
	ErrNotReady = errors.New("device not ready")

	ErrNoTargets     = errors.New("no targets to drill")
	ErrUnknownTarget = job.ErrUnknownTarget

	// ErrDeviceClosed fails a run when the transport drops mid-run.
	ErrDeviceClosed = errors.New("device closed")

	// ErrCancelled may be returned by a procedure to end its run as Cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrDeadline fails a run that outlives Options.Deadline.
	ErrDeadline = errors.New("run deadline exceeded")
)

// Procedure is a unit of work executed as one run.
type Procedure struct {
	Name string

	// Prepare, if set, runs on the dispatcher before the run starts.
	// An error rejects the start.
	Prepare func(j *job.Job) error

	// Run executes on the worker. It reports whether the procedure succeeded.
	Run func(r *Run) (bool, error)
}

// Options configure an Engine.
type Options struct {
	// Deadline bounds the wall-clock time of a run; zero means none.
	Deadline time.Duration

	Logger logrus.FieldLogger
}

// Engine owns the device for runs and the job they work on.
type Engine struct {
	dev  machine.Device
	disp *Dispatcher
	log  logrus.FieldLogger
	opts Options

	// sem is the device itself, shared by runs and the poller.
	sem *semaphore.Weighted

	// only touched on the dispatcher
	job *job.Job

	mx        sync.Mutex
	running   bool
	state     RunState
	last      Outcome
	run       *Run
	done      chan struct{}
	listeners map[int]Listener
	nextL     int
}

// New creates an Engine. A nil job is treated as empty.
func New(dev machine.Device, j *job.Job, disp *Dispatcher, opts Options) *Engine {
	if j == nil {
		j = job.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	done := make(chan struct{})
	close(done)
	return &Engine{
		dev:       dev,
		disp:      disp,
		log:       opts.Logger,
		opts:      opts,
		sem:       semaphore.NewWeighted(1),
		job:       j,
		done:      done,
		listeners: make(map[int]Listener),
	}
}

// Device returns the device the engine drives.
func (e *Engine) Device() machine.Device { return e.dev }

// Subscribe registers l for every event; call the returned func to remove it.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.mx.Lock()
	id := e.nextL
	e.nextL++
	e.listeners[id] = l
	e.mx.Unlock()

	return func() {
		e.mx.Lock()
		delete(e.listeners, id)
		e.mx.Unlock()
	}
}

// emit must be called on the dispatcher.
func (e *Engine) emit(ev Event) {
	e.mx.Lock()
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	e.mx.Unlock()

	for _, l := range ls {
		l(ev)
	}
}

// State returns the state of the current or last run.
func (e *Engine) State() RunState {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.state
}

// Last returns the outcome of the last finished run.
func (e *Engine) Last() Outcome {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.last
}

// Busy reports whether a run is active.
func (e *Engine) Busy() bool {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.running
}

// Start begins a run of p. onDone is called on the dispatcher with the result
// if the run completes, and not at all if it fails or is cancelled.
//
// Start must not be called from the dispatcher.
func (e *Engine) Start(p Procedure, onDone func(success bool)) error {
	e.mx.Lock()
	if e.running {
		e.mx.Unlock()
		return ErrBusy
	}
	e.running = true
	e.mx.Unlock()

	reject := func(err error) error {
		e.mx.Lock()
		e.running = false
		e.mx.Unlock()
		e.log.WithError(err).WithField("run", p.Name).Warn("rejected")
		return err
	}

	// waits out an in-flight poll
	err := e.sem.Acquire(context.Background(), 1)
	if err != nil {
		return reject(err)
	}
	err = e.ready()
	if err == nil && p.Prepare != nil {
		var perr error
		err = e.disp.Do(func() { perr = p.Prepare(e.job) })
		if err == nil {
			err = perr
		}
	}
	if err != nil {
		e.sem.Release(1)
		return reject(err)
	}

	r := newRun(e, p.Name, e.opts.Deadline)
	done := make(chan struct{})
	e.mx.Lock()
	e.state = Running
	e.run = r
	e.done = done
	e.mx.Unlock()

	e.log.WithField("run", p.Name).Info("started")
	go e.work(r, p, onDone, done)
	return nil
}

func (e *Engine) ready() error {
	if !e.dev.IsOpen() {
		return errors.Wrap(ErrNotReady, "device is closed")
	}
	if !e.dev.CheckLimitSwitches() {
		err := e.dev.State().Switches.Check()
		if err == nil {
			err = errors.New("limit switches are not properly set")
		}
		return errors.Wrap(ErrNotReady, err.Error())
	}
	return nil
}

func (e *Engine) work(r *Run, p Procedure, onDone func(bool), done chan struct{}) {
	defer close(done)
	defer r.stop()

	success, err := p.Run(r)

	out := Outcome{Name: p.Name}
	switch {
	case errors.Is(err, ErrCancelled), err == nil && r.observed:
		out.State = Cancelled
	case err != nil:
		out.State = Failed
		out.Err = err
	default:
		out.State = Completed
		out.Success = success
	}

	log := e.log.WithField("run", p.Name).WithField("state", out.State)
	if out.Err != nil {
		log = log.WithError(out.Err)
	}
	log.Info("finished")

	e.mx.Lock()
	e.state = out.State
	e.last = out
	e.mx.Unlock()

	derr := e.disp.Do(func() {
		e.emit(Event{Kind: EventDone, Run: p.Name, Outcome: &out})
		if out.State == Completed && onDone != nil {
			onDone(out.Success)
		}
	})
	if derr != nil {
		e.log.WithError(derr).Warn("run result not delivered")
	}

	e.sem.Release(1)
	e.mx.Lock()
	e.running = false
	e.run = nil
	e.mx.Unlock()
}

// Wait blocks until the active run, if any, has finished and returns its outcome.
func (e *Engine) Wait() Outcome {
	e.mx.Lock()
	done := e.done
	e.mx.Unlock()
	<-done
	return e.Last()
}

// Cancel asks the active run to stop at its next check. It does not stop motion.
func (e *Engine) Cancel() {
	e.mx.Lock()
	r := e.run
	e.mx.Unlock()
	if r != nil {
		r.requestCancel()
	}
}

// Abort cancels the active run and stops motion.
func (e *Engine) Abort() {
	e.Cancel()
	e.dev.CancelMove()
}

// Poll refreshes the device if no run holds it. It reports whether a transfer happened.
func (e *Engine) Poll() bool {
	if !e.sem.TryAcquire(1) {
		return false
	}
	defer e.sem.Release(1)
	e.dev.Transfer()
	return true
}

// Targets returns a snapshot of the job.
func (e *Engine) Targets() ([]job.Target, error) {
	var res []job.Target
	err := e.disp.Do(func() { res = e.job.Targets() })
	return res, err
}

func (e *Engine) idleDo(fn func() error) error {
	var ferr error
	err := e.disp.Do(func() {
		if e.Busy() {
			ferr = ErrBusy
			return
		}
		ferr = fn()
	})
	if err != nil {
		return err
	}
	return ferr
}

// Load replaces the job. It is rejected while a run is active.
func (e *Engine) Load(points []coord.Point) error {
	return e.idleDo(func() error {
		e.job = job.New(points)
		e.emit(Event{Kind: EventJob})
		return nil
	})
}

// Offset moves the job origin to origin. It is rejected while a run is active.
func (e *Engine) Offset(origin coord.Point) error {
	return e.idleDo(func() error {
		e.job.Offset(origin)
		e.emit(Event{Kind: EventJob})
		return nil
	})
}

// Reset puts every target back to Idle. It is rejected while a run is active.
func (e *Engine) Reset() error {
	return e.idleDo(func() error {
		e.job.Reset()
		e.emit(Event{Kind: EventJob})
		return nil
	})
}

// Reorder applies a new order; it is allowed during a run since targets are
// tracked by id.
func (e *Engine) Reorder(ids []uuid.UUID) error {
	var rerr error
	err := e.disp.Do(func() {
		rerr = e.job.Reorder(ids)
		if rerr == nil {
			e.emit(Event{Kind: EventJob})
		}
	})
	if err != nil {
		return err
	}
	return rerr
}

// SetStatus changes a target status on behalf of the user.
func (e *Engine) SetStatus(id uuid.UUID, s job.Status) (job.Target, error) {
	if s == job.Selected {
		return e.Select(id)
	}
	return e.updateTarget(func() (job.Target, error) { return e.job.SetStatus(id, s) })
}

// Select marks a target Selected, restoring the previous selection.
func (e *Engine) Select(id uuid.UUID) (job.Target, error) {
	var t job.Target
	var ferr error
	err := e.disp.Do(func() {
		t, ferr = e.job.Select(id)
		if ferr == nil {
			// the previous selection changed too
			e.emit(Event{Kind: EventJob})
		}
	})
	if err != nil {
		return t, err
	}
	return t, ferr
}

func (e *Engine) updateTarget(fn func() (job.Target, error)) (job.Target, error) {
	var t job.Target
	var ferr error
	err := e.disp.Do(func() {
		t, ferr = fn()
		if ferr == nil {
			e.emit(Event{Kind: EventStatus, Target: &t})
		}
	})
	if err != nil {
		return t, err
	}
	return t, ferr
}

// SetDrivers enables or disables the stepper drivers. It is rejected while a
// run is active; the next poll sends it.
func (e *Engine) SetDrivers(d machine.Drivers) error {
	return e.idleDo(func() error {
		e.dev.SetDrivers(d)
		return nil
	})
}

// SetCycleDrill starts or stops a manual drill cycle. It is rejected while a run is active.
func (e *Engine) SetCycleDrill(v bool) error {
	return e.idleDo(func() error {
		e.dev.SetCycleDrill(v)
		return nil
	})
}

// SetInhibitBacklash turns backlash compensation off or back on.
func (e *Engine) SetInhibitBacklash(v bool) error {
	return e.idleDo(func() error {
		e.dev.SetInhibitBacklash(v)
		return nil
	})
}

// SetCalibration replaces the scale and backlash of an axis. It is rejected
// while a run is active.
func (e *Engine) SetCalibration(a machine.Axis, cal calib.Axis) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	return e.idleDo(func() error {
		e.dev.SetCalibration(a, cal)
		return nil
	})
}

// Zero redefines the current location on one axis. It is rejected while a run is active.
func (e *Engine) Zero(a machine.Axis, inches float64) error {
	return e.idleDo(func() error {
		e.dev.Zero(a, inches)
		return nil
	})
}
