// Package runner contains the schedulable units of a run and the root
// scheduler that drives them.
//
// A BaseRunner wraps one group of test cases bound to one resolved
// configuration and exposes a pollable contract: ask it for work until
// it reports done. The RootRunner expands the runbook's combinator into
// runners, keeps the worker pool saturated, and aggregates results.
package runner

import (
	"context"
	"errors"
	"fmt"

	"runctl/internal/platform"
	"runctl/internal/schema"
	"runctl/internal/task"
	"runctl/internal/testcase"
	"runctl/internal/variable"
)

var (
	// ErrUnknownKind is returned when a filter names a runner kind that
	// is not in the construction table.
	ErrUnknownKind = errors.New("unknown runner kind")
)

// BaseRunner is the pollable contract of one schedulable unit group.
type BaseRunner interface {
	// ID identifies the runner in logs and working directories.
	ID() string

	// IsDone reports whether the runner has no further work. A runner
	// must not report done while any of its tasks is still in flight.
	IsDone() bool

	// FetchTask returns the runner's next unit of work: an asynchronous
	// task to submit to the pool, a list of results to apply directly,
	// or neither when no work is ready right now. An error aborts the
	// whole run.
	FetchTask(ctx context.Context) (*task.Task[[]*testcase.Result], []*testcase.Result, error)

	// Close releases the runner's private resources (log handle,
	// working directory bookkeeping). Idempotent.
	Close() error
}

// Params carries everything a runner constructor needs.
type Params struct {
	Runbook   *schema.Runbook
	Filters   []schema.CaseFilter
	Index     int
	Variables variable.Set
	Catalog   *testcase.Catalog
	Platform  platform.Platform
	WorkDir   string
}

type constructor func(p Params) (BaseRunner, error)

// constructors is the closed table of built-in runner kinds.
var constructors = map[string]constructor{
	"local": newLocalRunner,
}

// New builds the runner a filter group is assigned to.
func New(kind string, p Params) (BaseRunner, error) {
	build, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return build(p)
}
