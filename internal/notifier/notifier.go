// Package notifier delivers run-status and test-result events to
// configured sinks. Delivery is fire-and-forget: the scheduler and
// runners emit events and never wait for a response.
package notifier

import (
	"errors"
	"fmt"
	"time"

	"runctl/internal/schema"
	"runctl/internal/testcase"
	"runctl/pkg/logging"
)

const logSubsystem = "notifier"

// ErrUnknownKind is returned when a runbook names a notifier kind that
// is not in the construction table.
var ErrUnknownKind = errors.New("unknown notifier kind")

// Event is one run-status or sub-test-result event.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// RunStarted / RunCompleted fields.
	RunID       string
	Concurrency int
	Summary     testcase.Summary
	Aborted     bool

	// CaseResult field.
	Result *testcase.Result
}

// EventKind enumerates the event types.
type EventKind string

const (
	EventRunStarted   EventKind = "run_started"
	EventCaseResult   EventKind = "case_result"
	EventRunCompleted EventKind = "run_completed"
)

// RunStarted builds a run-started event.
func RunStarted(runID string, concurrency int) Event {
	return Event{Kind: EventRunStarted, Timestamp: time.Now(), RunID: runID, Concurrency: concurrency}
}

// CaseResult builds a per-case result event.
func CaseResult(result *testcase.Result) Event {
	return Event{Kind: EventCaseResult, Timestamp: time.Now(), Result: result}
}

// RunCompleted builds the final event; it fires even when the run
// aborts early.
func RunCompleted(runID string, summary testcase.Summary, aborted bool) Event {
	return Event{Kind: EventRunCompleted, Timestamp: time.Now(), RunID: runID, Summary: summary, Aborted: aborted}
}

// Notifier is a sink for run events.
type Notifier interface {
	Kind() string
	Notify(event Event)
	Close() error
}

type constructor func(cfg schema.NotifierConfig) (Notifier, error)

// constructors is the closed table of built-in notifier kinds.
var constructors = map[string]constructor{
	"console": newConsole,
	"file":    newFile,
}

// New builds the notifier a runbook configured.
func New(cfg schema.NotifierConfig) (Notifier, error) {
	build, ok := constructors[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return build(cfg)
}

// Fanout delivers every event to a set of sinks.
type Fanout struct {
	sinks []Notifier
}

// NewFanout builds the sinks for the runbook's notifier list, always
// including a console sink so a summary is printed even with an empty
// configuration.
func NewFanout(configs []schema.NotifierConfig) (*Fanout, error) {
	hasConsole := false
	var sinks []Notifier
	for _, cfg := range configs {
		sink, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if sink.Kind() == "console" {
			hasConsole = true
		}
		sinks = append(sinks, sink)
	}
	if !hasConsole {
		console, err := New(schema.NotifierConfig{Kind: "console"})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, console)
	}
	return &Fanout{sinks: sinks}, nil
}

// Notify forwards the event to every sink. A failing sink is logged
// and skipped, never propagated.
func (f *Fanout) Notify(event Event) {
	for _, sink := range f.sinks {
		sink.Notify(event)
	}
}

// Close closes every sink.
func (f *Fanout) Close() {
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			logging.Warn(logSubsystem, "failed to close %s notifier: %v", sink.Kind(), err)
		}
	}
}
