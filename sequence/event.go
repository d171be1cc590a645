package sequence

import (
	"encoding/json"
	"strings"

	"github.com/mastercactapus/cncdrill/job"
	"github.com/pkg/errors"
)

// RunState is the state of the current or last run.
type RunState int

const (
	Idle RunState = iota
	Running
	Completed
	Failed
	Cancelled
)

var runStateNames = [...]string{
	Idle:      "idle",
	Running:   "running",
	Completed: "completed",
	Failed:    "failed",
	Cancelled: "cancelled",
}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return "unknown"
	}
	return runStateNames[s]
}

func (s RunState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RunState) UnmarshalText(data []byte) error {
	for i, n := range runStateNames {
		if strings.EqualFold(n, string(data)) {
			*s = RunState(i)
			return nil
		}
	}
	return errors.Errorf("invalid run state '%s'", data)
}

// Outcome is the result of a finished run.
type Outcome struct {
	Name  string   `json:"name"`
	State RunState `json:"state"`

	// Success is only meaningful for Completed.
	Success bool  `json:"success"`
	Err     error `json:"-"`
}

// MarshalJSON adds the failure reason as "error".
func (o Outcome) MarshalJSON() ([]byte, error) {
	type outcome Outcome
	res := struct {
		outcome
		Error string `json:"error,omitempty"`
	}{outcome: outcome(o)}
	if o.Err != nil {
		res.Error = o.Err.Error()
	}
	return json.Marshal(res)
}

func (o Outcome) String() string {
	switch o.State {
	case Completed:
		if o.Success {
			return o.Name + ": completed"
		}
		return o.Name + ": unsuccessful"
	case Failed:
		return o.Name + ": failed: " + o.Err.Error()
	}
	return o.Name + ": " + o.State.String()
}

type EventKind int

const (
	EventProgress EventKind = iota
	EventLog
	EventStatus
	EventJob
	EventDone
)

var eventKindNames = [...]string{
	EventProgress: "progress",
	EventLog:      "log",
	EventStatus:   "status",
	EventJob:      "job",
	EventDone:     "done",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is a notification to listeners. Which fields are set depends on Kind.
type Event struct {
	Kind EventKind `json:"kind"`
	Run  string    `json:"run,omitempty"`

	// Progress is 0-100; Info marks progress that should not be logged.
	Progress int  `json:"progress,omitempty"`
	Info     bool `json:"info,omitempty"`

	Text    string      `json:"text,omitempty"`
	Target  *job.Target `json:"target,omitempty"`
	Outcome *Outcome    `json:"outcome,omitempty"`
}

// A Listener receives events on the dispatcher. It must not block or call Do.
type Listener func(Event)
