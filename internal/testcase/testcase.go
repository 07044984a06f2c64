// Package testcase provides the catalog of selectable test cases, their
// declared requirements, and the result model of one execution.
//
// Cases are registered explicitly at process start; selection matches
// runbook filters against case and suite names.
package testcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"runctl/internal/environment"
	"runctl/internal/schema"
	"runctl/internal/variable"
)

var (
	// ErrDuplicateCase is returned when a case name is registered twice.
	ErrDuplicateCase = errors.New("test case already registered")
	// ErrNoMatch is returned when a filter selects nothing.
	ErrNoMatch = errors.New("no test case matches filter")
)

// CaseContext is everything a running case may touch: its environment,
// the case-visible variables, and a logger owned by the runner.
type CaseContext struct {
	Environment *environment.Environment
	Node        *environment.Node
	Variables   variable.Set
	Log         *slog.Logger
}

// Metadata describes one selectable test case. Requirement may be nil,
// meaning the default single-node shape.
type Metadata struct {
	Name        string
	Suite       string
	Description string
	Priority    int
	Requirement *schema.NodeSpace
	Run         func(ctx context.Context, tc *CaseContext) Outcome
}

// EffectiveRequirement returns the declared requirement or the default.
func (m Metadata) EffectiveRequirement() *schema.NodeSpace {
	if m.Requirement != nil {
		return m.Requirement
	}
	return schema.DefaultNodeSpace()
}

// Catalog is an explicit registry of test cases.
type Catalog struct {
	mu    sync.RWMutex
	cases []Metadata
	index map[string]struct{}
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: map[string]struct{}{}}
}

// Register adds a case. Names are unique across suites.
func (c *Catalog) Register(md Metadata) error {
	if md.Name == "" || md.Run == nil {
		return fmt.Errorf("test case needs a name and an entry point")
	}
	if md.Requirement != nil {
		if err := md.Requirement.Validate(); err != nil {
			return fmt.Errorf("test case %s: %w", md.Name, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[md.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCase, md.Name)
	}
	c.index[md.Name] = struct{}{}
	c.cases = append(c.cases, md)
	return nil
}

// matches applies the filter pattern to a case: exact case name, exact
// suite name, or a trailing '*' prefix wildcard on either.
func matches(pattern string, md Metadata) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(md.Name, prefix) || strings.HasPrefix(md.Suite, prefix)
	}
	return pattern == md.Name || pattern == md.Suite
}

// Select resolves a filter to its cases, sorted by priority then name.
// A filter matching nothing is an error so a typo fails loudly.
func (c *Catalog) Select(filter schema.CaseFilter) ([]Metadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var selected []Metadata
	for _, md := range c.cases {
		if matches(filter.Name, md) {
			selected = append(selected, md)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, filter.Name)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Priority != selected[j].Priority {
			return selected[i].Priority < selected[j].Priority
		}
		return selected[i].Name < selected[j].Name
	})
	return selected, nil
}

// Names lists registered case names, for diagnostics.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.cases))
	for _, md := range c.cases {
		names = append(names, md.Name)
	}
	sort.Strings(names)
	return names
}

// defaultCatalog is the process-wide catalog the CLI uses; built-in
// suites are registered into it at startup.
var defaultCatalog = NewCatalog()

// Default returns the process-wide catalog.
func Default() *Catalog {
	return defaultCatalog
}
