// Package calib converts between device steps and inches.
//
//	inches = (steps - delta) / scale
//	delta  = steps - inches*scale
package calib

import (
	"math"

	"github.com/pkg/errors"
)

// ErrBadScale is returned when an axis scale is not a positive number of steps.
var ErrBadScale = errors.New("scale must be a positive number of steps per inch")

// Axis holds the calibration for a single axis.
type Axis struct {
	// Scale is the number of device steps per inch.
	Scale int `yaml:"scale" json:"scale"`

	// Backlash is the number of steps added to a move that reverses direction.
	Backlash int `yaml:"backlash" json:"backlash"`
}

// Validate checks that the axis can be used for conversion.
func (a Axis) Validate() error {
	if a.Scale <= 0 {
		return errors.Wrapf(ErrBadScale, "scale %d", a.Scale)
	}
	if a.Backlash < 0 {
		return errors.Errorf("backlash must not be negative: got %d", a.Backlash)
	}
	return nil
}

// ToInches converts an absolute step count to inches from the logical zero.
func (a Axis) ToInches(steps, delta int) float64 {
	if a.Scale <= 0 {
		return 0
	}
	return float64(steps-delta) / float64(a.Scale)
}

// steps rounds to the nearest step; 0.29*100 is 28.999...
func (a Axis) steps(inches float64) int {
	return int(math.Round(inches * float64(a.Scale)))
}

// ToSteps converts inches from the logical zero to an absolute step count.
func (a Axis) ToSteps(inches float64, delta int) int {
	return a.steps(inches) + delta
}

// DeltaFor returns the delta that makes steps read as inches.
//
// Calling it again with the same inputs yields the same delta.
func (a Axis) DeltaFor(steps int, inches float64) int {
	return steps - a.steps(inches)
}
