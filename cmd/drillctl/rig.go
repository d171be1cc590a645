package main

import (
	"context"

	"github.com/mastercactapus/cncdrill/config"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/machine/rig"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/mastercactapus/cncdrill/spjs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// station is an opened rig with its engine.
type station struct {
	ctl    *machine.Controller
	engine *sequence.Engine
	disp   *sequence.Dispatcher
	sp     *spjs.Client

	// states receives the device state after every exchange; full sends are dropped.
	states chan machine.State
}

func rigOptions(s *config.Settings, sp *spjs.Client) rig.Options {
	return rig.Options{
		Baud:        s.Device.Baud,
		ReadTimeout: s.Device.ReadTimeout,
		SPJS:        sp,
		Logger:      log,
	}
}

func newBridge(s *config.Settings) *spjs.Client {
	if s.Device.SPJS == "" {
		return nil
	}
	l := log.WithField("spjs", s.Device.SPJS)
	sp := spjs.New(s.Device.SPJS, spjs.Options{Logger: l})
	go logBridge(sp.Messages(), sp.Done(), l)
	return sp
}

// logBridge reports what the bridge says outside of port data, such as a port
// that failed to open, until done is closed.
func logBridge(msgs <-chan interface{}, done <-chan struct{}, l logrus.FieldLogger) {
	for {
		select {
		case <-done:
			return
		case m := <-msgs:
			switch m := m.(type) {
			case *spjs.ServerError:
				l.WithField("error", m.Error).Warn("bridge error")
			case *spjs.Status:
				l.WithFields(logrus.Fields{"cmd": m.Cmd, "id": m.ID, "queued": m.Queued}).Debug("bridge status")
			case *spjs.Frame:
				l.WithField("port", m.Port).Debug("data for a port with no stream")
			}
		}
	}
}

// openStation opens the configured device. A device that fails to open leaves
// the station usable with a closed controller.
func openStation(s *config.Settings) *station {
	st := &station{
		disp:   sequence.NewDispatcher(),
		sp:     newBridge(s),
		states: make(chan machine.State, 16),
	}

	var t machine.Transport
	if s.Device.Name == "" {
		log.Warn("no device configured")
	} else {
		var err error
		t, err = rig.Open(s.Device.Name, rigOptions(s, st.sp))
		if err != nil {
			log.WithError(err).WithField("device", s.Device.Name).Error("open device")
			t = nil
		}
	}

	st.ctl = machine.NewController(t, machine.ControllerOptions{
		Logger: log.WithField("device", s.Device.Name),
		OnTransfer: func(state machine.State) {
			select {
			case st.states <- state:
			default:
			}
		},
	})
	st.ctl.Restore(s.Persisted())

	st.engine = sequence.New(st.ctl, nil, st.disp, sequence.Options{
		Deadline: s.Device.Deadline,
		Logger:   log,
	})
	st.engine.Subscribe(func(ev sequence.Event) {
		switch ev.Kind {
		case sequence.EventLog:
			log.WithField("run", ev.Run).Info(ev.Text)
		case sequence.EventProgress:
			if !ev.Info {
				log.WithField("run", ev.Run).Debugf("%d%%", ev.Progress)
			}
		}
	})
	return st
}

// run starts p and waits for it to finish, cancelling it with ctx.
func (st *station) run(ctx context.Context, p sequence.Procedure) (sequence.Outcome, error) {
	if !st.ctl.IsOpen() {
		return sequence.Outcome{}, errors.Wrap(sequence.ErrNotReady, "device is closed")
	}
	// switches are only known after the first exchange
	st.engine.Poll()

	err := st.engine.Start(p, nil)
	if err != nil {
		return sequence.Outcome{}, err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			st.engine.Abort()
		case <-done:
		}
	}()
	out := st.engine.Wait()
	close(done)
	return out, nil
}

// save writes the controller position back to the settings file.
func (st *station) save(s *config.Settings, path string) error {
	s.SetPersisted(st.ctl.Persisted())
	return s.Save(path)
}

// shutdown stops any run and saves once the device is idle.
func (st *station) shutdown(s *config.Settings, path string) error {
	st.engine.Abort()
	if out := st.engine.Wait(); out.Name != "" {
		log.Infof("last run %s", out)
	}
	return st.save(s, path)
}

func (st *station) Close() {
	st.disp.Close()
	if err := st.ctl.Close(); err != nil {
		log.WithError(err).Warn("close device")
	}
	if st.sp != nil {
		st.sp.Close()
	}
}

func outcomeErr(out sequence.Outcome) error {
	switch {
	case out.State == sequence.Failed:
		return out.Err
	case out.State == sequence.Cancelled:
		return sequence.ErrCancelled
	case !out.Success:
		return errors.New(out.String())
	}
	return nil
}
