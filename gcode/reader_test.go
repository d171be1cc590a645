package gcode

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram(t *testing.T) {
	gr := &Program{Blocks: MustParse("G90G20\nG81X0.5Y0.5R0.1Z-0.1\n")}

	b, err := gr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Block{{W: 'G', Arg: 90}, {W: 'G', Arg: 20}}, b)
	assert.False(t, b.HasAxis())

	b, err = gr.Read()
	assert.NoError(t, err)
	assert.True(t, b.HasAxis())
	assert.Equal(t, Block{{W: 'X', Arg: 0.5}, {W: 'Y', Arg: 0.5}, {W: 'R', Arg: 0.1}, {W: 'Z', Arg: -0.1}}, b.Args())

	b, err = gr.Read()
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, b)
}

func TestReadAll(t *testing.T) {
	blocks, err := ReadAll(&Program{Blocks: MustParse("X1\nX2\n")})
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	blocks, err = Parse("X1\nX2 Q\nX3\n")
	assert.ErrorIs(t, err, ErrSyntax)
	assert.ErrorContains(t, err, "line 2")
	assert.Len(t, blocks, 1)
}
