package rig

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/vm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_Emulated(t *testing.T) {
	host, device := net.Pipe()
	em := vm.NewMachine(vm.DefaultConfig)

	done := make(chan error, 1)
	go func() { done <- Serve(device, em) }()

	log, _ := test.NewNullLogger()
	c := NewConn(host, log)

	rep, err := c.Exchange(machine.Command{
		Steps:   [2]int{-1000, -10},
		Drivers: machine.Drivers{X: true, Y: true, T: true},
	})
	require.NoError(t, err)
	assert.Equal(t, [2]int{-1000, -10}, rep.Executed)
	assert.True(t, rep.Switches.XMin)
	assert.True(t, rep.Switches.Top)
	assert.Equal(t, [2]int{0, 990}, em.Position())

	require.NoError(t, c.Stop())

	// the stop byte is handled before the next command
	_, err = c.Exchange(machine.Command{})
	require.NoError(t, err)
	assert.Equal(t, 1, em.Stops())

	require.NoError(t, c.Close())
	require.NoError(t, <-done)

	_, err = c.Exchange(machine.Command{})
	assert.Equal(t, io.ErrClosedPipe, err)
	assert.Equal(t, io.ErrClosedPipe, c.Stop())
}

func TestConn_SkipsNoise(t *testing.T) {
	rw := &struct {
		io.Reader
		io.Writer
	}{
		Reader: bytes.NewBufferString("CNCDRILL ready\n\n<Ok|STP:0,0|SW:000010>\n"),
		Writer: &bytes.Buffer{},
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	c := NewConn(rw, log)
	rep, err := c.Exchange(machine.Command{Drivers: machine.Drivers{X: true}})
	require.NoError(t, err)
	assert.True(t, rep.Switches.Top)
	assert.Equal(t, "X0Y0F1\n", rw.Writer.(*bytes.Buffer).String())
	require.Len(t, hook.Entries, 1)

	// nothing left to read
	_, err = c.Exchange(machine.Command{})
	assert.Error(t, err)
}

func TestConn_DeviceError(t *testing.T) {
	host, device := net.Pipe()
	em := vm.NewMachine(vm.DefaultConfig)
	em.FailAfter(0)
	go Serve(device, em)
	defer host.Close()

	c := NewConn(host, nil)
	_, err := c.Exchange(machine.Command{})
	assert.Error(t, err)
}

type stuckStop struct{ machine.Transport }

func (stuckStop) Stop() error { return errors.New("driver fault") }

func TestServe_StopFails(t *testing.T) {
	rw := &struct {
		io.Reader
		io.Writer
	}{
		Reader: bytes.NewBufferString(string([]byte{StopByte})),
		Writer: &bytes.Buffer{},
	}
	err := Serve(rw, stuckStop{vm.NewMachine(vm.DefaultConfig)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver fault")
}
