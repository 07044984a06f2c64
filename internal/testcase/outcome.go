package testcase

import "fmt"

type outcomeKind int

const (
	outcomePassed outcomeKind = iota
	outcomeFailed
	outcomeSkipped
)

// Outcome is the typed result of a case entry point. Expected skips are
// values, never panics: a case that discovers an unsupported capability
// returns Skipped instead of throwing.
type Outcome struct {
	kind    outcomeKind
	message string
}

// Passed marks a successful execution.
func Passed(message string) Outcome {
	return Outcome{kind: outcomePassed, message: message}
}

// Failed marks a failed execution.
func Failed(err error) Outcome {
	return Outcome{kind: outcomeFailed, message: err.Error()}
}

// Failedf marks a failed execution with a formatted message.
func Failedf(format string, args ...interface{}) Outcome {
	return Outcome{kind: outcomeFailed, message: fmt.Sprintf(format, args...)}
}

// Skipped marks a case that cannot run in this environment.
func Skipped(reason string) Outcome {
	return Outcome{kind: outcomeSkipped, message: reason}
}

// Status maps the outcome to a terminal result status.
func (o Outcome) Status() Status {
	switch o.kind {
	case outcomePassed:
		return StatusPassed
	case outcomeSkipped:
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Message returns the free-text explanation.
func (o Outcome) Message() string {
	return o.message
}
