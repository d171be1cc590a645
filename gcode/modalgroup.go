package gcode

type ModalGroup byte

// Only the groups a drill program or the rig link can use are tracked;
// everything else is reported as ModalGroupOther.
const (
	ModalGroupNone = iota
	ModalGroupNonModal
	ModalGroupMotion
	ModalGroupDistanceMode
	ModalGroupUnits
	ModalGroupRetractMode
	ModalGroupStopping
	ModalGroupSpindle
	ModalGroupFeedRate
	ModalGroupOther
)

func (w Word) ModalGroup() ModalGroup {
	switch w.W {
	case 'G':
		switch w.Arg {
		case 4, 10, 28, 30, 53, 92:
			return ModalGroupNonModal
		case 0, 1, 2, 3, 80, 81, 82, 83:
			return ModalGroupMotion
		case 90, 91:
			return ModalGroupDistanceMode
		case 20, 21:
			return ModalGroupUnits
		case 98, 99:
			return ModalGroupRetractMode
		}
		return ModalGroupOther
	case 'M':
		switch w.Arg {
		case 0, 1, 2, 30:
			return ModalGroupStopping
		case 3, 4, 5:
			return ModalGroupSpindle
		}
		return ModalGroupOther
	case 'F':
		return ModalGroupFeedRate
	}

	return ModalGroupNone
}

// IsDrillCycle reports whether a motion mode is one of the canned drill cycles.
func IsDrillCycle(motion float64) bool {
	switch motion {
	case 81, 82, 83:
		return true
	}
	return false
}
