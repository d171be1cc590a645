package rig

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/spjs"
	"github.com/mastercactapus/cncdrill/vm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device identifier prefixes.
const (
	PrefixSerial = "serial:"
	PrefixSPJS   = "spjs:"
	Emulator     = "emulator"
)

// ErrUnknownDevice is returned by Open for an identifier it can't handle.
var ErrUnknownDevice = errors.New("unknown device")

// DefaultGlobs match the usual USB serial adapters.
var DefaultGlobs = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/cu.usbserial*",
	"/dev/cu.usbmodem*",
}

// Options configure enumeration and opening.
type Options struct {
	Baud        int
	ReadTimeout time.Duration

	// Globs override DefaultGlobs.
	Globs []string

	// SPJS, if set, adds the bridge's ports.
	SPJS *spjs.Client

	Emulator vm.Config
	Logger   logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// Enumerate lists the identifiers of every device that can be opened.
// The emulator is always last.
func Enumerate(ctx context.Context, opts Options) ([]string, error) {
	globs := opts.Globs
	if globs == nil {
		globs = DefaultGlobs
	}

	var ids []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, errors.Wrapf(err, "glob %s", g)
		}
		for _, m := range matches {
			ids = append(ids, PrefixSerial+m)
		}
	}
	sort.Strings(ids)

	if opts.SPJS != nil {
		ports, err := opts.SPJS.List(ctx)
		if err != nil {
			opts.logger().WithError(err).Warn("list bridge ports")
		}
		for _, p := range ports {
			ids = append(ids, PrefixSPJS+p.Name)
		}
	}

	return append(ids, Emulator), nil
}

// Open opens a device by identifier.
func Open(id string, opts Options) (machine.Transport, error) {
	log := opts.logger().WithField("device", id)
	switch {
	case id == Emulator:
		cfg := opts.Emulator
		if cfg == (vm.Config{}) {
			cfg = vm.DefaultConfig
		}
		return vm.NewMachine(cfg), nil
	case strings.HasPrefix(id, PrefixSerial):
		return OpenSerial(strings.TrimPrefix(id, PrefixSerial), opts.Baud, opts.ReadTimeout, log)
	case strings.HasPrefix(id, PrefixSPJS):
		if opts.SPJS == nil {
			return nil, errors.Wrap(ErrUnknownDevice, "no bridge configured")
		}
		port := strings.TrimPrefix(id, PrefixSPJS)
		baud := opts.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		err := opts.SPJS.Open(port, baud)
		if err != nil {
			return nil, errors.Wrapf(err, "open bridge port %s", port)
		}
		return NewConn(opts.SPJS.Stream(port), log), nil
	}
	return nil, errors.Wrap(ErrUnknownDevice, id)
}
