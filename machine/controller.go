package machine

import (
	"sync"
	"time"

	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/sirupsen/logrus"
)

// Controller implements Device on top of a Transport, keeping the step
// accounting on the host.
type Controller struct {
	t   Transport
	log logrus.FieldLogger
	now func() time.Time

	onTransfer func(State)

	mx      sync.Mutex
	st      State
	pending [2]int
}

var _ Device = &Controller{}

// ControllerOptions configure a Controller.
type ControllerOptions struct {
	Logger logrus.FieldLogger

	// OnTransfer, if set, is called with the new state after every exchange.
	// It must not call back into the Controller.
	OnTransfer func(State)

	Now func() time.Time
}

// NewController creates a Controller; a nil Transport yields a closed device.
func NewController(t Transport, opts ControllerOptions) *Controller {
	c := &Controller{
		t:          t,
		log:        opts.Logger,
		now:        opts.Now,
		onTransfer: opts.OnTransfer,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.st.Open = t != nil
	c.st.Drivers = Drivers{X: true, Y: true, T: true}
	return c
}

// Restore loads persisted values, replacing the current accounting.
func (c *Controller) Restore(p Persisted) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.st.Calib = p.Calib
	c.st.Abs = p.Abs
	c.st.Delta = p.Delta
	c.st.LastDir = p.LastDir
	c.st.InhibitBacklash = p.InhibitBacklash
	c.updateRel()
}

// Persisted returns the values that should be saved.
func (c *Controller) Persisted() Persisted {
	c.mx.Lock()
	defer c.mx.Unlock()
	return Persisted{
		Calib:   c.st.Calib,
		Abs:     c.st.Abs,
		Delta:   c.st.Delta,
		LastDir: c.st.LastDir,

		InhibitBacklash: c.st.InhibitBacklash,
	}
}

func (c *Controller) updateRel() {
	for a := range c.st.Rel {
		c.st.Rel[a] = c.st.Abs[a] - c.st.Delta[a]
	}
}

func (c *Controller) MoveBy(dx, dy int) {
	c.mx.Lock()
	c.pending[X] += dx
	c.pending[Y] += dy
	c.mx.Unlock()
}

// MoveTo queues the moves needed to reach (x, y) in inches.
func (c *Controller) MoveTo(x, y float64) {
	c.mx.Lock()
	defer c.mx.Unlock()
	for a, v := range [2]float64{x, y} {
		target := c.st.Calib[a].ToSteps(v, c.st.Delta[a])
		c.pending[a] = target - c.st.Abs[a]
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// Transfer sends queued steps and refreshes the state from the device report.
//
// Errors are logged and leave the device closed; check IsOpen afterward.
func (c *Controller) Transfer() {
	c.mx.Lock()
	if !c.st.Open {
		c.pending = [2]int{}
		c.mx.Unlock()
		return
	}

	cmd := Command{Drivers: c.st.Drivers, CycleDrill: c.st.CycleDrill}
	var comp [2]int
	for a, n := range c.pending {
		dir := sign(n)
		if dir != 0 && c.st.LastDir[a] != 0 && dir != c.st.LastDir[a] && !c.st.InhibitBacklash {
			comp[a] = dir * c.st.Calib[a].Backlash
		}
		cmd.Steps[a] = n + comp[a]
	}
	c.pending = [2]int{}

	rep, err := c.t.Exchange(cmd)
	if err != nil {
		c.log.WithError(err).Error("transfer")
		c.st.Open = false
		c.mx.Unlock()
		return
	}

	for a, n := range rep.Executed {
		moved := n - comp[a]
		if sign(moved) != sign(cmd.Steps[a]) {
			// stopped while taking up the slack
			moved = 0
		}
		c.st.Abs[a] += moved
		if d := sign(n); d != 0 {
			c.st.LastDir[a] = d
		}
		if n != cmd.Steps[a] {
			c.log.WithFields(logrus.Fields{
				"axis":      Axis(a),
				"requested": cmd.Steps[a],
				"executed":  n,
			}).Debug("short move")
		}
	}
	c.updateRel()
	c.st.Switches = rep.Switches
	c.st.LastUpdate = c.now()
	st := c.st
	c.mx.Unlock()

	if c.onTransfer != nil {
		c.onTransfer(st)
	}
}

// CancelMove stops the hardware and drops any queued steps.
func (c *Controller) CancelMove() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.pending = [2]int{}
	if !c.st.Open {
		return
	}
	err := c.t.Stop()
	if err != nil {
		c.log.WithError(err).Error("cancel move")
		c.st.Open = false
	}
}

func (c *Controller) CheckLimitSwitches() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.st.Switches.Sane()
}

// CurrentLocation returns the position in inches from the logical zero.
func (c *Controller) CurrentLocation() coord.Point {
	c.mx.Lock()
	defer c.mx.Unlock()
	return coord.Point{
		X: c.st.Calib[X].ToInches(c.st.Abs[X], c.st.Delta[X]),
		Y: c.st.Calib[Y].ToInches(c.st.Abs[Y], c.st.Delta[Y]),
	}
}

func (c *Controller) State() State {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.st
}

func (c *Controller) IsOpen() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.st.Open
}

func (c *Controller) SetCycleDrill(v bool) {
	c.mx.Lock()
	c.st.CycleDrill = v
	c.mx.Unlock()
}

func (c *Controller) SetDrivers(d Drivers) {
	c.mx.Lock()
	c.st.Drivers = d
	c.mx.Unlock()
}

func (c *Controller) SetInhibitBacklash(v bool) {
	c.mx.Lock()
	c.st.InhibitBacklash = v
	c.mx.Unlock()
}

func (c *Controller) SetCalibration(a Axis, cal calib.Axis) {
	c.mx.Lock()
	c.st.Calib[a] = cal
	c.mx.Unlock()
}

func (c *Controller) Zero(a Axis, inches float64) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.st.Delta[a] = c.st.Calib[a].DeltaFor(c.st.Abs[a], inches)
	c.updateRel()
}

// Close closes the transport.
func (c *Controller) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.st.Open = false
	if c.t == nil {
		return nil
	}
	return c.t.Close()
}
