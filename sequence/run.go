package sequence

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/job"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Run is the handle a procedure uses to talk to the engine.
//
// Cancellation is cooperative: a procedure must call Cancelled between
// steps and stop starting new hardware actions once it returns true.
type Run struct {
	e    *Engine
	name string
	log  logrus.FieldLogger

	ctx  context.Context
	stop context.CancelFunc

	cancel   atomic.Bool
	observed bool
	progress int
}

func newRun(e *Engine, name string, deadline time.Duration) *Run {
	r := &Run{e: e, name: name, log: e.log.WithField("run", name)}
	if deadline > 0 {
		r.ctx, r.stop = context.WithTimeout(context.Background(), deadline)
	} else {
		r.ctx, r.stop = context.WithCancel(context.Background())
	}
	return r
}

func (r *Run) requestCancel() { r.cancel.Store(true) }

// Name returns the procedure name.
func (r *Run) Name() string { return r.name }

// Device returns the device; only the run touches it while the run is active.
func (r *Run) Device() machine.Device { return r.e.dev }

// Cancelled reports whether cancellation was requested. Once it returns true
// the run ends as Cancelled.
func (r *Run) Cancelled() bool {
	if r.cancel.Load() {
		r.observed = true
		return true
	}
	return false
}

func (r *Run) post(ev Event) {
	ev.Run = r.name
	err := r.e.disp.Post(func() { r.e.emit(ev) })
	if err != nil {
		r.log.WithError(err).Debug("event dropped")
	}
}

// Progress reports p percent. Values are clamped to 0-100 and never go
// backwards within a run; info marks progress that should not be logged.
func (r *Run) Progress(p int, info bool) {
	if p > 100 {
		p = 100
	}
	if p < r.progress {
		p = r.progress
	}
	r.progress = p
	r.post(Event{Kind: EventProgress, Progress: p, Info: info})
}

// Logf emits a log line for the user.
func (r *Run) Logf(format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	r.log.Info(text)
	r.post(Event{Kind: EventLog, Text: text})
}

// Sleep waits for d. It fails once the run deadline has passed.
func (r *Run) Sleep(d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.ctx.Done():
		return errors.Wrap(ErrDeadline, r.ctx.Err().Error())
	case <-t.C:
		return nil
	}
}

// Do runs fn on the dispatcher with the job.
func (r *Run) Do(fn func(j *job.Job)) error {
	return r.e.disp.Do(func() { fn(r.e.job) })
}

// Target returns the current state of a target.
func (r *Run) Target(id uuid.UUID) (t job.Target, err error) {
	derr := r.Do(func(j *job.Job) { t, err = j.Get(id) })
	if derr != nil {
		return t, derr
	}
	return t, err
}

// Targets returns a snapshot of the job.
func (r *Run) Targets() (res []job.Target, err error) {
	err = r.Do(func(j *job.Job) { res = j.Targets() })
	return res, err
}

// SetStatus updates a target and notifies listeners.
func (r *Run) SetStatus(id uuid.UUID, s job.Status) (t job.Target, err error) {
	derr := r.Do(func(j *job.Job) {
		t, err = j.SetStatus(id, s)
		if err == nil {
			ev := Event{Kind: EventStatus, Run: r.name, Target: &t}
			r.e.emit(ev)
			if s == job.Selected {
				// another target may have lost the selection
				r.e.emit(Event{Kind: EventJob, Run: r.name})
			}
		}
	})
	if derr != nil {
		return t, derr
	}
	return t, err
}
