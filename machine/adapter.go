package machine

import (
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/coord"
)

// A Device represents the minimal drilling rig interface.
//
// Moves are only requests; they are sent to the hardware by the next Transfer.
type Device interface {
	MoveBy(dx, dy int)
	MoveTo(x, y float64)
	Transfer()
	CancelMove()

	// CheckLimitSwitches reports whether the last switch reading is sane.
	CheckLimitSwitches() bool
	CurrentLocation() coord.Point

	State() State
	IsOpen() bool

	SetCycleDrill(bool)
	SetDrivers(Drivers)
	SetInhibitBacklash(bool)
	SetCalibration(Axis, calib.Axis)

	// Zero redefines the current position on an axis to read as inches.
	Zero(a Axis, inches float64)
}

// A Transport performs command/report exchanges with a rig.
type Transport interface {
	// Exchange sends a command and waits for the device to report back.
	Exchange(Command) (Report, error)

	// Stop halts motion immediately, bypassing any queued command.
	Stop() error
	Close() error
}

// Command is a single host to device request.
type Command struct {
	// Steps to move on each axis; the sign is the direction.
	Steps      [2]int
	Drivers    Drivers
	CycleDrill bool
}

// Report is the device reply to a Command.
type Report struct {
	// Executed is the number of steps actually taken per axis.
	Executed [2]int
	Switches Switches
}
