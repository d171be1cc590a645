// Package config loads and saves the rig settings file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mastercactapus/cncdrill/calib"
	"github.com/mastercactapus/cncdrill/machine"
	"github.com/mastercactapus/cncdrill/sequence"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CNCDRILL_"

// Settings is everything the rig remembers between runs.
type Settings struct {
	X AxisSettings `yaml:"x"`
	Y AxisSettings `yaml:"y"`

	// InhibitBacklash turns off backlash compensation on both axes.
	InhibitBacklash bool `yaml:"inhibit_backlash"`

	Device  DeviceSettings  `yaml:"device"`
	Homing  HomingSettings  `yaml:"homing"`
	Drill   DrillSettings   `yaml:"drill"`
	Server  ServerSettings  `yaml:"server"`
	Logging LoggingSettings `yaml:"logging"`

	// DataDir holds uploaded drawings and exported programs.
	DataDir string `yaml:"data_dir"`
}

// AxisSettings is the calibration and last known position of one axis.
type AxisSettings struct {
	calib.Axis `yaml:",inline"`

	Abs     int `yaml:"abs"`
	Delta   int `yaml:"delta"`
	LastDir int `yaml:"last_dir"`
}

type DeviceSettings struct {
	// Name is a device id as listed by `drillctl devices`, e.g. serial:/dev/ttyUSB0.
	Name        string        `yaml:"name"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	SPJS        string        `yaml:"spjs"`

	// Refresh is how often an idle device is polled.
	Refresh time.Duration `yaml:"refresh"`
	// Deadline bounds a single run; zero disables it.
	Deadline time.Duration `yaml:"deadline"`
}

type HomingSettings struct {
	CoarseStep  int           `yaml:"coarse_step"`
	FineStep    int           `yaml:"fine_step"`
	Bound       int           `yaml:"bound"`
	CoarseDelay time.Duration `yaml:"coarse_delay"`
	FineDelay   time.Duration `yaml:"fine_delay"`
}

type DrillSettings struct {
	Tries  int           `yaml:"tries"`
	Period time.Duration `yaml:"period"`
}

type ServerSettings struct {
	Addr string `yaml:"addr"`
	// SaveEvery is how often the position is written back to the settings file.
	SaveEvery time.Duration `yaml:"save_every"`
}

type LoggingSettings struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	axis := AxisSettings{Axis: calib.Axis{Scale: 1000, Backlash: 0}}
	return &Settings{
		X: axis,
		Y: axis,
		Device: DeviceSettings{
			Baud:        115200,
			ReadTimeout: 5 * time.Second,
			Refresh:     500 * time.Millisecond,
		},
		Homing: HomingSettings{
			CoarseStep:  sequence.DefaultHoming.CoarseStep,
			FineStep:    sequence.DefaultHoming.FineStep,
			Bound:       sequence.DefaultHoming.Bound,
			CoarseDelay: sequence.DefaultHoming.CoarseDelay,
			FineDelay:   sequence.DefaultHoming.FineDelay,
		},
		Drill: DrillSettings{
			Tries:  sequence.DefaultDrill.Tries,
			Period: sequence.DefaultDrill.Period,
		},
		Server: ServerSettings{
			Addr:      ":8000",
			SaveEvery: 10 * time.Second,
		},
		Logging: LoggingSettings{Level: "info"},
		DataDir: "data",
	}
}

// Load reads path on top of the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "read settings")
	}
	if err == nil {
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}

	_ = godotenv.Load()
	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes s to path, replacing the old file only once the new one is complete.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal settings")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "create settings dir")
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(f.Name())

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, "write settings")
	}
	return errors.Wrap(os.Rename(f.Name(), path), "replace settings")
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (s *Settings) applyEnv() error {
	strs := map[string]*string{
		"DEVICE":    &s.Device.Name,
		"SPJS":      &s.Device.SPJS,
		"ADDR":      &s.Server.Addr,
		"LOG_LEVEL": &s.Logging.Level,
		"LOG_FILE":  &s.Logging.File,
		"DATA_DIR":  &s.DataDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"BAUD":       &s.Device.Baud,
		"X_SCALE":    &s.X.Scale,
		"Y_SCALE":    &s.Y.Scale,
		"X_BACKLASH": &s.X.Backlash,
		"Y_BACKLASH": &s.Y.Backlash,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = n
	}

	durs := map[string]*time.Duration{
		"REFRESH":  &s.Device.Refresh,
		"DEADLINE": &s.Device.Deadline,
	}
	for name, dst := range durs {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, name)
		}
		*dst = d
	}
	return nil
}

// Validate checks the values a run depends on.
func (s *Settings) Validate() error {
	if err := s.X.Validate(); err != nil {
		return errors.Wrap(err, "x axis")
	}
	if err := s.Y.Validate(); err != nil {
		return errors.Wrap(err, "y axis")
	}
	if _, err := logrus.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Persisted returns the controller state stored in s.
func (s *Settings) Persisted() machine.Persisted {
	return machine.Persisted{
		Calib:   [2]calib.Axis{s.X.Axis, s.Y.Axis},
		Abs:     [2]int{s.X.Abs, s.Y.Abs},
		Delta:   [2]int{s.X.Delta, s.Y.Delta},
		LastDir: [2]int{s.X.LastDir, s.Y.LastDir},

		InhibitBacklash: s.InhibitBacklash,
	}
}

// SetPersisted records the controller state in s.
func (s *Settings) SetPersisted(p machine.Persisted) {
	for i, a := range []*AxisSettings{&s.X, &s.Y} {
		a.Axis = p.Calib[i]
		a.Abs = p.Abs[i]
		a.Delta = p.Delta[i]
		a.LastDir = p.LastDir[i]
	}
	s.InhibitBacklash = p.InhibitBacklash
}

func (s *Settings) HomingOptions() sequence.HomingOptions {
	return sequence.HomingOptions{
		CoarseStep:  s.Homing.CoarseStep,
		FineStep:    s.Homing.FineStep,
		Bound:       s.Homing.Bound,
		CoarseDelay: s.Homing.CoarseDelay,
		FineDelay:   s.Homing.FineDelay,
	}
}

func (s *Settings) DrillOptions() sequence.DrillOptions {
	return sequence.DrillOptions{Tries: s.Drill.Tries, Period: s.Drill.Period}
}
