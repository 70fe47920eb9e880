// Package runlog tracks the lifecycle of a load run.
//
// Valid status graph:
//
//	STARTED ──► LOADING ──► COMPLETED
//	   │           │
//	   ├───────────┴──────► FAILED
//	   └──────────────────► COMPLETED (nothing to load)
//
// COMPLETED and FAILED are terminal states.
package runlog

import (
	"fmt"
	"time"
)

// Status values are stored as-is in the _loads table.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusLoading   Status = "LOADING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

var validTransitions = map[Status][]Status{
	StatusStarted: {StatusLoading, StatusCompleted, StatusFailed},
	StatusLoading: {StatusCompleted, StatusFailed},
}

// ParseStatus converts a stored string back to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusStarted, StatusLoading, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown load status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func IsTerminal(s Status) bool { return len(validTransitions[s]) == 0 }

// TransitionError is returned for a move the state machine forbids.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition load from %s to %s", e.From, e.To)
}

// Run is one load run as recorded in the warehouse.
type Run struct {
	LoadID     string
	Status     Status
	StartedAt  time.Time
	FinishedAt *time.Time
	Records    int
	Error      string
}

// New returns a run in the STARTED state.
func New(loadID string, now time.Time) *Run {
	return &Run{LoadID: loadID, Status: StatusStarted, StartedAt: now}
}

// Transition moves the run to status to. Reaching a terminal state stamps
// FinishedAt.
func (r *Run) Transition(to Status, now time.Time) error {
	if r.Status == to {
		return nil
	}
	if !IsTransitionAllowed(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}
	r.Status = to
	if IsTerminal(to) {
		r.FinishedAt = &now
	}
	return nil
}

// Fail moves the run to FAILED and records err.
func (r *Run) Fail(err error, now time.Time) error {
	if err != nil {
		r.Error = err.Error()
	}
	return r.Transition(StatusFailed, now)
}
