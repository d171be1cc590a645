package job

import (
	"strings"

	"github.com/pkg/errors"
)

// Status is the drill state of a target.
type Status int

const (
	Idle Status = iota
	Selected
	Next
	Drilled
)

var statusNames = [...]string{
	Idle:     "idle",
	Selected: "selected",
	Next:     "next",
	Drilled:  "drilled",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus parses the name of a status, case-insensitive.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return Status(i), nil
		}
	}
	return Idle, errors.Errorf("invalid status '%s'", name)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(data []byte) error {
	v, err := ParseStatus(string(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
