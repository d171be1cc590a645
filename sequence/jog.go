package sequence

// Jog moves by a number of steps on each axis, with backlash applied on a
// reversal like any other move.
func Jog(dx, dy int) Procedure {
	return Procedure{
		Name: "jog",
		Run: func(r *Run) (bool, error) {
			dev := r.Device()
			r.Logf("Jogging X%d Y%d", dx, dy)
			dev.MoveBy(dx, dy)
			dev.Transfer()
			if !dev.IsOpen() {
				return false, ErrDeviceClosed
			}
			r.Progress(100, false)
			if !dev.CheckLimitSwitches() {
				r.Logf("Limit switches are not properly set: %s", dev.State().Switches.Describe())
				return false, nil
			}
			return true, nil
		},
	}
}
