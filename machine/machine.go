package machine

import (
	"time"

	"github.com/mastercactapus/cncdrill/calib"
)

// Axis identifies one of the two table axes.
type Axis int

const (
	X Axis = iota
	Y
)

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	}
	return "?"
}

// Drivers holds the enable flags of the stepper drivers.
type Drivers struct {
	X bool `json:"x" yaml:"x"`
	Y bool `json:"y" yaml:"y"`
	T bool `json:"t" yaml:"t"`
}

// State mirrors the hardware.
//
// Positions are in device steps; Rel is always Abs - Delta.
type State struct {
	Abs     [2]int `json:"abs"`
	Rel     [2]int `json:"rel"`
	Delta   [2]int `json:"delta"`
	LastDir [2]int `json:"lastDir"`

	Calib           [2]calib.Axis `json:"calib"`
	InhibitBacklash bool          `json:"inhibitBacklash"`
	Drivers         Drivers       `json:"drivers"`
	CycleDrill      bool          `json:"cycleDrill"`
	Switches        Switches      `json:"switches"`

	Open       bool      `json:"open"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Persisted holds the values that survive a restart.
type Persisted struct {
	Calib   [2]calib.Axis
	Abs     [2]int
	Delta   [2]int
	LastDir [2]int

	InhibitBacklash bool
}
