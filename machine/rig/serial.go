package rig

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// DefaultBaud is used when no baud rate is configured.
const DefaultBaud = 115200

// OpenSerial opens a local serial port.
//
// A read timeout bounds how long an exchange waits on a silent device.
func OpenSerial(name string, baud int, readTimeout time.Duration, log logrus.FieldLogger) (*Conn, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	if readTimeout == 0 {
		readTimeout = 50 * time.Millisecond
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", name)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return NewConn(p, log.WithField("port", name)), nil
}
