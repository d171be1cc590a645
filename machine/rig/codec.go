// Package rig talks to a drilling rig over a line oriented link.
//
// Every exchange is one line each way:
//
//	host:   X<dx>Y<dy>F<flags>
//	device: <Ok|STP:<dx>,<dy>|SW:<switches>>
//
// Flags are bit 0 X driver, bit 1 Y driver, bit 2 drill driver, bit 3 cycle drill.
// Switches are six 0/1 characters (X-min, X-max, Y-min, Y-max, top, bottom).
// A single '!' byte stops motion immediately.
package rig

import (
	"strconv"
	"strings"

	"github.com/mastercactapus/cncdrill/gcode"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
)

// StopByte is the realtime stop command.
const StopByte = '!'

const (
	flagX = 1 << iota
	flagY
	flagT
	flagCycle
)

// EncodeCommand returns the block sent for cmd.
func EncodeCommand(cmd machine.Command) gcode.Block {
	var flags int
	if cmd.Drivers.X {
		flags |= flagX
	}
	if cmd.Drivers.Y {
		flags |= flagY
	}
	if cmd.Drivers.T {
		flags |= flagT
	}
	if cmd.CycleDrill {
		flags |= flagCycle
	}
	return gcode.Block{
		{W: 'X', Arg: float64(cmd.Steps[0])},
		{W: 'Y', Arg: float64(cmd.Steps[1])},
		{W: 'F', Arg: float64(flags)},
	}
}

// DecodeCommand parses a block produced by EncodeCommand.
func DecodeCommand(b gcode.Block) (cmd machine.Command, err error) {
	err = b.Validate()
	if err != nil {
		return cmd, err
	}
	for _, w := range b {
		switch w.W {
		case 'X':
			cmd.Steps[0] = w.Int()
		case 'Y':
			cmd.Steps[1] = w.Int()
		case 'F':
			flags := w.Int()
			cmd.Drivers.X = flags&flagX != 0
			cmd.Drivers.Y = flags&flagY != 0
			cmd.Drivers.T = flags&flagT != 0
			cmd.CycleDrill = flags&flagCycle != 0
		default:
			return cmd, errors.Errorf("unexpected word %s", w)
		}
	}
	return cmd, nil
}

// FormatReport returns the device reply for rep, without the newline.
func FormatReport(rep machine.Report) string {
	return "<Ok|STP:" + strconv.Itoa(rep.Executed[0]) + "," + strconv.Itoa(rep.Executed[1]) +
		"|SW:" + rep.Switches.Bits() + ">"
}

// FormatError returns the device reply for a failed command.
func FormatError(err error) string {
	msg := strings.NewReplacer("|", " ", ">", " ", "\n", " ").Replace(err.Error())
	return "<Err|MSG:" + msg + ">"
}

func parseSteps(data string) (res [2]int, err error) {
	parts := strings.Split(data, ",")
	if len(parts) != 2 {
		return res, errors.New("invalid number of elements")
	}
	for i, p := range parts {
		res[i], err = strconv.Atoi(p)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// ParseReport parses a device reply line.
func ParseReport(data string) (rep machine.Report, err error) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, "<") || !strings.HasSuffix(data, ">") {
		return rep, errors.Errorf("invalid report '%s'", data)
	}
	data = strings.TrimPrefix(data, "<")
	data = strings.TrimSuffix(data, ">")
	parts := strings.Split(data, "|")

	var msg string
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			return rep, errors.Errorf("invalid field '%s'", s)
		}
		switch sParts[0] {
		case "STP":
			rep.Executed, err = parseSteps(sParts[1])
		case "SW":
			rep.Switches, err = machine.ParseSwitches(sParts[1])
		case "MSG":
			msg = sParts[1]
		}
		if err != nil {
			return rep, errors.Wrap(err, sParts[0])
		}
	}

	if parts[0] != "Ok" {
		return rep, errors.Errorf("device error: %s", msg)
	}
	return rep, nil
}
