// Package job holds the ordered list of holes to drill.
package job

import (
	"github.com/google/uuid"
	"github.com/mastercactapus/cncdrill/coord"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownTarget is returned for an id that is not in the current list.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrNotPermutation is returned when a new order does not hold exactly the current targets.
	ErrNotPermutation = errors.New("order is not a permutation of the job")
)

// Target is a single hole location.
type Target struct {
	// ID is stable across reorders.
	ID uuid.UUID `json:"id"`

	// Index is the position in the list, reassigned on every rebuild.
	Index int `json:"index"`

	Location coord.Point `json:"location"`
	Status   Status      `json:"status"`
}

// Job is an ordered list of targets.
//
// A Job is not safe for concurrent use; the sequence dispatcher owns it while a run is active.
type Job struct {
	targets []Target
	byID    map[uuid.UUID]int

	selected     uuid.UUID
	selectedPrev Status
}

// New creates a Job with every point Idle.
func New(points []coord.Point) *Job {
	j := &Job{targets: make([]Target, len(points))}
	for i, p := range points {
		j.targets[i] = Target{ID: uuid.New(), Location: p, Status: Idle}
	}
	j.rebuild()
	return j
}

func (j *Job) rebuild() {
	j.byID = make(map[uuid.UUID]int, len(j.targets))
	for i := range j.targets {
		j.targets[i].Index = i
		j.byID[j.targets[i].ID] = i
	}
}

// Len returns the number of targets.
func (j *Job) Len() int { return len(j.targets) }

// Targets returns a copy of the list.
func (j *Job) Targets() []Target {
	res := make([]Target, len(j.targets))
	copy(res, j.targets)
	return res
}

// Get returns the target with the given id.
func (j *Job) Get(id uuid.UUID) (Target, error) {
	i, ok := j.byID[id]
	if !ok {
		return Target{}, errors.Wrapf(ErrUnknownTarget, "id %s", id)
	}
	return j.targets[i], nil
}

// SetStatus updates the status of a target and returns the updated value.
func (j *Job) SetStatus(id uuid.UUID, s Status) (Target, error) {
	i, ok := j.byID[id]
	if !ok {
		return Target{}, errors.Wrapf(ErrUnknownTarget, "id %s", id)
	}
	if s == Selected {
		return j.Select(id)
	}
	// Next is held by a run, which puts the selection back if it fails
	if id == j.selected && s != Next {
		j.selected = uuid.Nil
	}
	j.targets[i].Status = s
	return j.targets[i], nil
}

// Select marks a target Selected; the previous selection goes back
// to the status it had before being selected.
func (j *Job) Select(id uuid.UUID) (Target, error) {
	i, ok := j.byID[id]
	if !ok {
		return Target{}, errors.Wrapf(ErrUnknownTarget, "id %s", id)
	}
	if prev, ok := j.byID[j.selected]; ok && prev != i && j.targets[prev].Status == Selected {
		j.targets[prev].Status = j.selectedPrev
	}
	if id != j.selected {
		j.selectedPrev = j.targets[i].Status
	}
	j.selected = id
	j.targets[i].Status = Selected
	return j.targets[i], nil
}

// Reorder replaces the order of the list. Statuses and ids are kept, indexes are rebuilt.
func (j *Job) Reorder(order []uuid.UUID) error {
	if len(order) != len(j.targets) {
		return errors.Wrapf(ErrNotPermutation, "got %d targets, have %d", len(order), len(j.targets))
	}
	res := make([]Target, 0, len(order))
	seen := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		i, ok := j.byID[id]
		if !ok || seen[id] {
			return errors.Wrapf(ErrNotPermutation, "id %s", id)
		}
		seen[id] = true
		res = append(res, j.targets[i])
	}
	j.targets = res
	j.rebuild()
	return nil
}

// Offset moves every target by -origin, making origin the new drawing zero.
func (j *Job) Offset(origin coord.Point) {
	for i := range j.targets {
		j.targets[i].Location = j.targets[i].Location.Sub(origin)
	}
	j.rebuild()
}

// Remaining returns the number of targets not yet drilled.
func (j *Job) Remaining() int {
	var n int
	for _, t := range j.targets {
		if t.Status != Drilled {
			n++
		}
	}
	return n
}

// Reset puts every target back to Idle.
func (j *Job) Reset() {
	for i := range j.targets {
		j.targets[i].Status = Idle
	}
	j.selected = uuid.Nil
}
