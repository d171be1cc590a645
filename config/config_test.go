package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Missing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, sequence.DefaultHoming, s.HomingOptions())
	assert.Equal(t, sequence.DefaultDrill, s.DrillOptions())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
x:
  scale: 2000
  backlash: 12
  abs: 500
device:
  name: emulator
  refresh: 250ms
drill:
  period: 20ms
`), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, calib.Axis{Scale: 2000, Backlash: 12}, s.X.Axis)
	assert.Equal(t, 500, s.X.Abs)
	assert.Equal(t, 1000, s.Y.Scale, "defaults kept")
	assert.Equal(t, "emulator", s.Device.Name)
	assert.Equal(t, 250*time.Millisecond, s.Device.Refresh)
	assert.Equal(t, 20*time.Millisecond, s.Drill.Period)
	assert.Equal(t, 20, s.Drill.Tries)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x: [1, 2"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CNCDRILL_DEVICE", "serial:/dev/ttyACM0")
	t.Setenv("CNCDRILL_Y_BACKLASH", "7")
	t.Setenv("CNCDRILL_DEADLINE", "2m")

	s, err := Load(filepath.Join(t.TempDir(), "rig.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "serial:/dev/ttyACM0", s.Device.Name)
	assert.Equal(t, 7, s.Y.Backlash)
	assert.Equal(t, 2*time.Minute, s.Device.Deadline)

	t.Setenv("CNCDRILL_BAUD", "fast")
	_, err = Load(filepath.Join(t.TempDir(), "rig.yaml"))
	assert.ErrorContains(t, err, "CNCDRILL_BAUD")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rig.yaml")

	s := Default()
	s.SetPersisted(machine.Persisted{
		Calib:   [2]calib.Axis{{Scale: 1200, Backlash: 4}, {Scale: 1300}},
		Abs:     [2]int{10, 20},
		Delta:   [2]int{-5, 6},
		LastDir: [2]int{1, -1},

		InhibitBacklash: true,
	})
	s.Device.Deadline = 90 * time.Second
	require.NoError(t, s.Save(path))

	res, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, res)
	assert.Equal(t, s.Persisted(), res.Persisted())

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "deadline: 1m30s")
	assert.Contains(t, string(data), "inhibit_backlash: true")
}

func TestValidate(t *testing.T) {
	s := Default()
	assert.NoError(t, s.Validate())

	s.Y.Scale = 0
	assert.ErrorIs(t, s.Validate(), calib.ErrBadScale)

	s = Default()
	s.Logging.Level = "loud"
	assert.Error(t, s.Validate())
}
