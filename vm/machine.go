// Package vm emulates a drilling rig for use without hardware.
package vm

import (
	"sync"

	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("emulator closed")

// Config describes the emulated table. Positions are physical steps.
type Config struct {
	Start [2]int

	// The min switch reads triggered at or below MinSwitch, the max switch at or above MaxSwitch.
	MinSwitch [2]int
	MaxSwitch [2]int

	// Slack is the mechanical play taken up on every direction reversal.
	Slack [2]int

	// DrillTravel is the number of exchanges the drill needs from top to bottom.
	DrillTravel int
}

// DefaultConfig is a 10x10in table at 1000 steps per inch, parked an inch
// from the min switches.
var DefaultConfig = Config{
	Start:       [2]int{1000, 1000},
	MinSwitch:   [2]int{0, 0},
	MaxSwitch:   [2]int{10000, 10000},
	DrillTravel: 3,
}

// Machine implements machine.Transport by simulating the table.
type Machine struct {
	mx  sync.Mutex
	cfg Config

	pos     [2]int
	lastDir [2]int
	absorb  [2]int
	drill   int

	exchanges int
	stops     int
	closed    bool

	disconnected bool
	stuckDrill   bool
	noMinSwitch  bool
	failAfter    int
}

var _ machine.Transport = &Machine{}

// NewMachine creates an emulator.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg, pos: cfg.Start, failAfter: -1}
}

// Disconnect makes every switch read triggered, as a rig without power does.
func (m *Machine) Disconnect() {
	m.mx.Lock()
	m.disconnected = true
	m.mx.Unlock()
}

// StuckDrill stops the drill actuator from moving.
func (m *Machine) StuckDrill(v bool) {
	m.mx.Lock()
	m.stuckDrill = v
	m.mx.Unlock()
}

// NoMinSwitch stops the min switches from ever triggering.
func (m *Machine) NoMinSwitch(v bool) {
	m.mx.Lock()
	m.noMinSwitch = v
	m.mx.Unlock()
}

// FailAfter makes Exchange fail once n more exchanges have succeeded.
// A negative n disables the fault.
func (m *Machine) FailAfter(n int) {
	m.mx.Lock()
	m.failAfter = n
	m.mx.Unlock()
}

// Position returns the physical carriage position.
func (m *Machine) Position() [2]int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.pos
}

// Exchanges returns the number of successful exchanges.
func (m *Machine) Exchanges() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.exchanges
}

// Stops returns the number of stop requests received.
func (m *Machine) Stops() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.stops
}

func (m *Machine) step(a, n int) {
	dir := 1
	steps := n
	if n < 0 {
		dir, steps = -1, -n
	}
	if m.lastDir[a] != 0 && m.lastDir[a] != dir {
		m.absorb[a] = m.cfg.Slack[a]
	}
	m.lastDir[a] = dir

	take := steps
	if m.absorb[a] < take {
		take = m.absorb[a]
	}
	m.absorb[a] -= take
	m.pos[a] += dir * (steps - take)
}

func (m *Machine) switches() machine.Switches {
	if m.disconnected {
		return machine.Switches{XMin: true, XMax: true, YMin: true, YMax: true, Top: true, Bottom: true}
	}
	return machine.Switches{
		XMin:   !m.noMinSwitch && m.pos[0] <= m.cfg.MinSwitch[0],
		XMax:   m.pos[0] >= m.cfg.MaxSwitch[0],
		YMin:   !m.noMinSwitch && m.pos[1] <= m.cfg.MinSwitch[1],
		YMax:   m.pos[1] >= m.cfg.MaxSwitch[1],
		Top:    m.drill == 0,
		Bottom: m.drill >= m.cfg.DrillTravel,
	}
}

func (m *Machine) Exchange(cmd machine.Command) (machine.Report, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.closed {
		return machine.Report{}, ErrClosed
	}
	if m.failAfter == 0 {
		return machine.Report{}, errors.New("emulated transport failure")
	}
	if m.failAfter > 0 {
		m.failAfter--
	}
	m.exchanges++

	var rep machine.Report
	for a, en := range [2]bool{cmd.Drivers.X, cmd.Drivers.Y} {
		if !en || cmd.Steps[a] == 0 {
			continue
		}
		m.step(a, cmd.Steps[a])
		rep.Executed[a] = cmd.Steps[a]
	}

	if cmd.Drivers.T && !m.stuckDrill {
		switch {
		case cmd.CycleDrill && m.drill < m.cfg.DrillTravel:
			m.drill++
		case !cmd.CycleDrill && m.drill > 0:
			m.drill--
		}
	}

	rep.Switches = m.switches()
	return rep, nil
}

// Stop is accepted and counted; emulated moves complete within their exchange.
func (m *Machine) Stop() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.stops++
	return nil
}

func (m *Machine) Close() error {
	m.mx.Lock()
	m.closed = true
	m.mx.Unlock()
	return nil
}
