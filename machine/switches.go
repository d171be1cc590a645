package machine

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrDisconnected means every switch reads triggered, which only happens
	// when the controller has lost power.
	ErrDisconnected = errors.New("all switches triggered, controller disconnected")

	ErrImpossibleX = errors.New("impossible combination: X-min and X-max both triggered")
	ErrImpossibleY = errors.New("impossible combination: Y-min and Y-max both triggered")
)

// Switches are the six limit switch readings.
type Switches struct {
	XMin   bool `json:"xMin"`
	XMax   bool `json:"xMax"`
	YMin   bool `json:"yMin"`
	YMax   bool `json:"yMax"`
	Top    bool `json:"top"`
	Bottom bool `json:"bottom"`
}

func (s Switches) list() [6]bool {
	return [6]bool{s.XMin, s.XMax, s.YMin, s.YMax, s.Top, s.Bottom}
}

var switchNames = [6]string{"X-min", "X-max", "Y-min", "Y-max", "top", "bottom"}

// Check returns an error describing why the reading can't be trusted.
func (s Switches) Check() error {
	all := true
	for _, v := range s.list() {
		all = all && v
	}
	switch {
	case all:
		return ErrDisconnected
	case s.XMin && s.XMax:
		return ErrImpossibleX
	case s.YMin && s.YMax:
		return ErrImpossibleY
	}
	return nil
}

// Sane reports whether the reading is a possible machine state.
func (s Switches) Sane() bool { return s.Check() == nil }

// Describe lists the triggered switches.
func (s Switches) Describe() string {
	var names []string
	for i, v := range s.list() {
		if v {
			names = append(names, switchNames[i])
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}

// Bits encodes the switches as six '0'/'1' characters in
// X-min, X-max, Y-min, Y-max, top, bottom order.
func (s Switches) Bits() string {
	var b [6]byte
	for i, v := range s.list() {
		b[i] = '0'
		if v {
			b[i] = '1'
		}
	}
	return string(b[:])
}

// ParseSwitches decodes the output of Bits.
func ParseSwitches(data string) (s Switches, err error) {
	if len(data) != 6 {
		return s, errors.Errorf("invalid switch data '%s'", data)
	}
	var v [6]bool
	for i := range v {
		switch data[i] {
		case '0':
		case '1':
			v[i] = true
		default:
			return s, errors.Errorf("invalid switch data '%s'", data)
		}
	}
	return Switches{XMin: v[0], XMax: v[1], YMin: v[2], YMax: v[3], Top: v[4], Bottom: v[5]}, nil
}
