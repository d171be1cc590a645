package gcode

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Read(t *testing.T) {
	p := NewParser(strings.NewReader("%\n(drill file)\ng90 g20 ; absolute inches\n\nG81 X1.5 Y-2 Z-0.1 R0.05\n"))

	b, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, Block{{W: 'G', Arg: 90}, {W: 'G', Arg: 20}}, b)

	b, err = p.Read()
	require.NoError(t, err)
	assert.Equal(t, "G81X1.5Y-2Z-0.1R0.05", b.String())
	assert.Equal(t, 5, p.Line())

	_, err = p.Read()
	assert.Equal(t, io.EOF, err)
}

func TestParser_Invalid(t *testing.T) {
	_, err := Parse("G0 X1 $$\n")
	assert.Error(t, err)
}

func TestBlock_Validate(t *testing.T) {
	assert.NoError(t, MustParse("G90G20")[0].Validate())
	assert.Error(t, MustParse("G90G91")[0].Validate())
	assert.Error(t, MustParse("X1X2")[0].Validate())
}

func TestWord_String(t *testing.T) {
	assert.Equal(t, "X-0.0625", Word{W: 'X', Arg: -0.0625}.String())
	assert.Equal(t, "Y0", Word{W: 'Y', Arg: -0.00001}.String())
	assert.Equal(t, "F10", Word{W: 'F', Arg: 10}.String())
}
