package rig

import (
	"bufio"
	"io"
	"strings"

	"github.com/mastercactapus/cncdrill/gcode"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
)

// Serve answers the device side of the link on rw using t, until reading fails
// or t cannot stop. It puts the emulator behind a real connection.
func Serve(rw io.ReadWriter, t machine.Transport) error {
	br := bufio.NewReader(rw)
	var line strings.Builder
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch b {
		case StopByte:
			// the host reads no reply to a stop, so a failure ends the link
			if err := t.Stop(); err != nil {
				return errors.Wrap(err, "stop")
			}
			continue
		case '\r':
			continue
		case '\n':
		default:
			line.WriteByte(b)
			continue
		}

		reply := serveLine(line.String(), t)
		line.Reset()
		if reply == "" {
			continue
		}
		_, err = io.WriteString(rw, reply+"\n")
		if err != nil {
			return err
		}
	}
}

func serveLine(data string, t machine.Transport) string {
	blocks, err := gcode.Parse(data)
	if err != nil {
		return FormatError(err)
	}
	if len(blocks) == 0 {
		return ""
	}
	cmd, err := DecodeCommand(blocks[0])
	if err != nil {
		return FormatError(err)
	}
	rep, err := t.Exchange(cmd)
	if err != nil {
		return FormatError(err)
	}
	return FormatReport(rep)
}
