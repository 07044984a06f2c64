// Package combinator expands a parameter sweep into a lazy sequence of
// variable binding sets, one run configuration per step.
//
// A combinator is single-pass: the root scheduler calls Fetch once per
// iteration until it reports exhaustion. The built-in kinds are
// registered in an explicit construction table; there is no runtime
// discovery.
package combinator

import (
	"errors"
	"fmt"

	"runctl/internal/schema"
	"runctl/internal/variable"
)

// ErrUnknownKind is returned when a runbook names a combinator kind
// that is not in the construction table.
var ErrUnknownKind = errors.New("unknown combinator kind")

// Combinator produces one variable binding set per Fetch call, merged
// over the run's frozen variables. The second return is false exactly
// once, when the sweep is exhausted.
type Combinator interface {
	Kind() string
	Fetch(current variable.Set) (variable.Set, bool)
}

type constructor func(cfg *schema.CombinatorConfig) (Combinator, error)

// constructors is the closed table of built-in combinator kinds.
var constructors = map[string]constructor{
	schema.CombinatorGrid:  newGrid,
	schema.CombinatorBatch: newBatch,
	schema.CombinatorCSV:   newCSV,
}

// New builds the combinator a runbook configured.
func New(cfg *schema.CombinatorConfig) (Combinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	build, ok := constructors[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return build(cfg)
}

// overlay merges one step's bindings onto the current variables without
// touching the original set.
func overlay(current variable.Set, bindings map[string]string) variable.Set {
	step := variable.Set{}
	for name, value := range bindings {
		step.Put(variable.Entry{Name: name, Value: value, IsCaseVisible: true})
	}
	if current == nil {
		return step
	}
	return current.Merge(step)
}
