package rig

import (
	"testing"

	"github.com/mastercactapus/cncdrill/gcode"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	cmd := machine.Command{
		Steps:      [2]int{-30, 0},
		Drivers:    machine.Drivers{X: true, Y: true, T: true},
		CycleDrill: true,
	}
	b := EncodeCommand(cmd)
	assert.Equal(t, "X-30Y0F15", b.String())

	blocks, err := gcode.Parse(b.String())
	require.NoError(t, err)
	res, err := DecodeCommand(blocks[0])
	require.NoError(t, err)
	assert.Equal(t, cmd, res)

	_, err = DecodeCommand(gcode.MustParse("X1Y1G0")[0])
	assert.Error(t, err)
}

func TestParseReport(t *testing.T) {
	rep, err := ParseReport("<Ok|STP:-30,2|SW:100010>\r\n")
	require.NoError(t, err)
	assert.Equal(t, [2]int{-30, 2}, rep.Executed)
	assert.Equal(t, machine.Switches{XMin: true, Top: true}, rep.Switches)
	assert.Equal(t, "<Ok|STP:-30,2|SW:100010>", FormatReport(rep))

	data := []string{
		"Ok|STP:1,1",
		"<Ok|STP:1>",
		"<Ok|STP:a,1>",
		"<Ok|SW:12>",
		"<Ok|STP>",
	}
	for _, d := range data {
		_, err = ParseReport(d)
		assert.Error(t, err, d)
	}

	_, err = ParseReport(FormatError(assert.AnError))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device error")
}
