package testcase

import (
	"fmt"
	"time"
)

// Status is one test-case execution state.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusAttempted Status = "ATTEMPTED"
	StatusRunning   Status = "RUNNING"
	StatusPassed    Status = "PASSED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
	StatusNotRun    Status = "NOTRUN"
)

// IsTerminal reports whether the status admits no further transition.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusNotRun:
		return true
	default:
		return false
	}
}

// transitions lists the allowed successor states. Transitions are
// monotonic except ATTEMPTED back to RUNNING on retry.
var transitions = map[Status][]Status{
	StatusQueued:    {StatusAttempted, StatusRunning, StatusSkipped, StatusNotRun, StatusFailed},
	StatusAttempted: {StatusRunning, StatusFailed, StatusNotRun},
	StatusRunning:   {StatusAttempted, StatusPassed, StatusFailed, StatusSkipped, StatusNotRun},
}

// Result is one test-case execution outcome.
type Result struct {
	Name    string
	Suite   string
	Status  Status
	Message string
	Elapsed time.Duration
}

// NewResult creates a queued result for a selected case.
func NewResult(name, suite string) *Result {
	return &Result{Name: name, Suite: suite, Status: StatusQueued}
}

// Transition moves the result to a new status, enforcing the state
// machine, and records the message.
func (r *Result) Transition(to Status, message string) error {
	if r.Status == to {
		if message != "" {
			r.Message = message
		}
		return nil
	}
	for _, allowed := range transitions[r.Status] {
		if allowed == to {
			r.Status = to
			if message != "" {
				r.Message = message
			}
			return nil
		}
	}
	return fmt.Errorf("invalid result transition for %s: %s -> %s", r.Name, r.Status, to)
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: %s %s", r.Name, r.Status, r.Message)
}

// Summary counts results by status.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Attempted int
	NotRun    int
}

// Summarize tallies a result list.
func Summarize(results []*Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusAttempted:
			s.Attempted++
		case StatusNotRun, StatusQueued, StatusRunning:
			s.NotRun++
		}
	}
	return s
}
