package schema

import (
	"errors"
	"fmt"
)

// Validation errors for the run description.
var (
	ErrInvalidRunbook    = errors.New("invalid runbook")
	ErrInvalidCombinator = errors.New("invalid combinator")
)

// Known combinator kinds. The set is closed; each kind is registered in
// the combinator package's construction table.
const (
	CombinatorGrid  = "grid"
	CombinatorBatch = "batch"
	CombinatorCSV   = "csv"
)

// GridField is one named value list of a grid sweep. Declaration order
// matters: the last declared field varies fastest.
type GridField struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// CombinatorConfig selects and parameterizes a parameter sweep.
type CombinatorConfig struct {
	Kind   string              `yaml:"kind"`
	Fields []GridField         `yaml:"fields,omitempty"` // grid
	Items  []map[string]string `yaml:"items,omitempty"`  // batch
	Path   string              `yaml:"path,omitempty"`   // csv
}

// Validate rejects a combinator whose payload does not match its kind.
func (c *CombinatorConfig) Validate() error {
	switch c.Kind {
	case CombinatorGrid:
		if len(c.Fields) == 0 {
			return fmt.Errorf("%w: grid needs at least one field", ErrInvalidCombinator)
		}
		for _, f := range c.Fields {
			if f.Name == "" || len(f.Values) == 0 {
				return fmt.Errorf("%w: grid field needs a name and values", ErrInvalidCombinator)
			}
		}
	case CombinatorBatch:
		if len(c.Items) == 0 {
			return fmt.Errorf("%w: batch needs at least one item", ErrInvalidCombinator)
		}
	case CombinatorCSV:
		if c.Path == "" {
			return fmt.Errorf("%w: csv needs a path", ErrInvalidCombinator)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCombinator, c.Kind)
	}
	return nil
}

// VariableDef is one declared runbook variable.
type VariableDef struct {
	Name          string `yaml:"name"`
	Value         string `yaml:"value"`
	IsSecret      bool   `yaml:"is_secret,omitempty"`
	IsCaseVisible bool   `yaml:"is_case_visible,omitempty"`
}

// CaseFilter selects test cases from the catalog and assigns them to a
// runner kind. Name supports a trailing '*' wildcard.
type CaseFilter struct {
	Name   string `yaml:"name"`
	Runner string `yaml:"runner,omitempty"` // defaults to "local"
	Enable *bool  `yaml:"enable,omitempty"` // defaults to true
}

// Enabled reports whether the filter takes part in the run.
func (f CaseFilter) Enabled() bool {
	return f.Enable == nil || *f.Enable
}

// RunnerKind returns the runner the filter's cases are grouped under.
func (f CaseFilter) RunnerKind() string {
	if f.Runner == "" {
		return "local"
	}
	return f.Runner
}

// PlatformConfig selects the platform driver and optionally overrides
// the capability it advertises.
type PlatformConfig struct {
	Kind       string     `yaml:"kind"`
	Capability *NodeSpace `yaml:"capability,omitempty"`
}

// NotifierConfig selects a notifier sink. Path applies to file-backed
// sinks only.
type NotifierConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path,omitempty"`
}

// Runbook is the top-level run description.
type Runbook struct {
	RunID       string            `yaml:"run_id,omitempty"`
	Concurrency int               `yaml:"concurrency,omitempty"`
	WorkDir     string            `yaml:"work_dir,omitempty"`
	Variables   []VariableDef     `yaml:"variables,omitempty"`
	Combinator  *CombinatorConfig `yaml:"combinator,omitempty"`
	Platform    PlatformConfig    `yaml:"platform"`
	TestCases   []CaseFilter      `yaml:"testcase"`
	Notifiers   []NotifierConfig  `yaml:"notifiers,omitempty"`
	Requirement *NodeSpace        `yaml:"requirement,omitempty"`
}

// Validate rejects malformed or self-contradictory runbooks before any
// scheduling starts.
func (r *Runbook) Validate() error {
	if r.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidRunbook)
	}
	if len(r.TestCases) == 0 {
		return fmt.Errorf("%w: at least one testcase filter is required", ErrInvalidRunbook)
	}
	for i, f := range r.TestCases {
		if f.Name == "" {
			return fmt.Errorf("%w: testcase[%d] needs a name", ErrInvalidRunbook, i)
		}
	}
	if r.Platform.Kind == "" {
		return fmt.Errorf("%w: platform kind is required", ErrInvalidRunbook)
	}
	if r.Platform.Capability != nil {
		if err := r.Platform.Capability.Validate(); err != nil {
			return err
		}
	}
	if r.Requirement != nil {
		if err := r.Requirement.Validate(); err != nil {
			return err
		}
	}
	if r.Combinator != nil {
		if err := r.Combinator.Validate(); err != nil {
			return err
		}
	}
	seen := map[string]struct{}{}
	for _, v := range r.Variables {
		if v.Name == "" {
			return fmt.Errorf("%w: variable needs a name", ErrInvalidRunbook)
		}
		if _, ok := seen[v.Name]; ok {
			return fmt.Errorf("%w: duplicate variable %q", ErrInvalidRunbook, v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}
