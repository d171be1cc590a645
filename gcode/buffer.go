package gcode

import (
	"bytes"
	"io"
)

// Buffer renders blocks from a Reader as newline-terminated text.
type Buffer struct {
	r   Reader
	buf bytes.Buffer
	err error
}

var _ io.Reader = &Buffer{}

func NewBuffer(r Reader) *Buffer {
	return &Buffer{r: r}
}

// Read fills p with whole lines when it can; the Reader's error, usually
// io.EOF, is returned once everything before it has been read.
func (b *Buffer) Read(p []byte) (int, error) {
	for b.err == nil && b.buf.Len() < len(p) {
		var block Block
		block, b.err = b.r.Read()
		if b.err == nil {
			b.buf.WriteString(block.String())
			b.buf.WriteByte('\n')
		}
	}
	if b.buf.Len() > 0 {
		return b.buf.Read(p)
	}
	return 0, b.err
}
