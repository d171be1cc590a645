package rig

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/mastercactapus/cncdrill/machine"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Conn represents a direct connection to a rig.
type Conn struct {
	rw   io.ReadWriter
	scan *bufio.Scanner
	log  logrus.FieldLogger

	mx  sync.Mutex
	wMx sync.Mutex

	closeCh   chan struct{}
	closeOnce sync.Once
}

var _ machine.Transport = &Conn{}

// NewConn creates a new Conn using the provided ReadWriter for data.
func NewConn(rw io.ReadWriter, log logrus.FieldLogger) *Conn {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Conn{
		rw:      rw,
		scan:    bufio.NewScanner(rw),
		log:     log,
		closeCh: make(chan struct{}),
	}
}

// Close will abort any in-progress exchange and close the
// underlying ReadWriter, if it implements io.Closer.
func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if closer, ok := c.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}

func (c *Conn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Conn) write(p []byte) error {
	c.wMx.Lock()
	defer c.wMx.Unlock()
	_, err := c.rw.Write(p)
	return err
}

// Exchange sends cmd and returns after the device reports back.
func (c *Conn) Exchange(cmd machine.Command) (machine.Report, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.closed() {
		return machine.Report{}, io.ErrClosedPipe
	}

	err := c.write([]byte(EncodeCommand(cmd).String() + "\n"))
	if err != nil {
		return machine.Report{}, errors.Wrap(err, "write")
	}

	for {
		if !c.scan.Scan() {
			if c.closed() {
				return machine.Report{}, io.ErrClosedPipe
			}
			err = c.scan.Err()
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return machine.Report{}, errors.Wrap(err, "read")
		}
		line := strings.TrimSpace(c.scan.Text())
		if strings.HasPrefix(line, "<") {
			return ParseReport(line)
		}
		if line != "" {
			// banners after a reset, debug output
			c.log.WithField("line", line).Debug("ignored device output")
		}
	}
}

// Stop will write the stop byte directly to the device,
// ahead of any pending exchange.
func (c *Conn) Stop() error {
	if c.closed() {
		return io.ErrClosedPipe
	}
	c.wMx.Lock()
	defer c.wMx.Unlock()
	if bw, ok := c.rw.(io.ByteWriter); ok {
		return bw.WriteByte(StopByte)
	}
	_, err := c.rw.Write([]byte{StopByte})
	return err
}
