package gcode

import (
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/pkg/errors"
)

// ErrUnsupported is returned by Run for codes a drill program has no use for.
var ErrUnsupported = errors.New("unsupported code")

// VM follows the modal state of a program and the X/Y position it visits.
//
// Positions are kept in inches regardless of the program units.
type VM struct {
	pos coord.Point

	// offset is set by G92; program coordinates are pos - offset.
	offset coord.Point

	modal [ModalGroupOther + 1]float64
}

// NewVM returns a VM in the power-on state: G0 G90 G20 G98 M5.
func NewVM() *VM {
	vm := &VM{}

	vm.modal[ModalGroupMotion] = 0
	vm.modal[ModalGroupDistanceMode] = 90
	vm.modal[ModalGroupUnits] = 20
	vm.modal[ModalGroupRetractMode] = 98
	vm.modal[ModalGroupStopping] = 0
	vm.modal[ModalGroupSpindle] = 5

	return vm
}

func (vm *VM) Inches() bool   { return vm.modal[ModalGroupUnits] == 20 }
func (vm *VM) Relative() bool { return vm.modal[ModalGroupDistanceMode] == 91 }

// Motion returns the active motion mode (0, 1, 81, ...).
func (vm *VM) Motion() float64 { return vm.modal[ModalGroupMotion] }

// Position returns the current position in program coordinates.
func (vm *VM) Position() coord.Point {
	return vm.pos.Sub(vm.offset)
}

func isSupported(g Word) bool {
	if g.IsAxis() {
		return true
	}

	switch g.W {
	case 'G':
		switch g.Arg {
		case 0, 1, 4, 20, 21, 80, 81, 82, 83, 90, 91, 92, 94, 98, 99:
			return true
		}
	case 'M':
		switch g.Arg {
		case 0, 2, 3, 5, 6, 30:
			return true
		}
	case 'F', 'R', 'P', 'Q', 'S', 'T', 'N':
		return true
	}

	return false
}

// xy returns the X and Y words of b scaled by mul, keeping base for missing axes.
func xy(base coord.Point, b Block, mul float64) coord.Point {
	if ok, x := b.Arg('X'); ok {
		base.X = x * mul
	}
	if ok, y := b.Arg('Y'); ok {
		base.Y = y * mul
	}
	return base
}

// Run applies a block. It reports whether the block moved to a new X/Y position.
func (vm *VM) Run(b Block) (moved bool, err error) {
	err = b.Validate()
	if err != nil {
		return false, err
	}
	var setOffset bool
	for _, g := range b {
		if !isSupported(g) {
			return false, errors.Wrap(ErrUnsupported, g.String())
		}
		switch mg := g.ModalGroup(); mg {
		case ModalGroupNone, ModalGroupOther:
		case ModalGroupNonModal:
			setOffset = setOffset || g.Arg == 92
		default:
			vm.modal[mg] = g.Arg
		}
	}

	hasX, _ := b.Arg('X')
	hasY, _ := b.Arg('Y')
	if !hasX && !hasY {
		return false, nil
	}

	mul := 1.0
	if !vm.Inches() {
		mul = 1 / 25.4
	}

	if setOffset {
		// the current position now reads as the given coordinates
		vm.offset = vm.pos.Sub(xy(vm.Position(), b, mul))
		return false, nil
	}

	if vm.Relative() {
		vm.pos = vm.pos.Add(xy(coord.Point{}, b, mul))
	} else {
		vm.pos = xy(vm.Position(), b, mul).Add(vm.offset)
	}
	return true, nil
}
