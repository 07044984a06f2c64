// Package config loads a run description (runbook) from YAML, layering
// variables from the runbook itself, the process environment, and
// command-line overrides before substitution.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"runctl/internal/schema"
	"runctl/internal/variable"
	"runctl/pkg/logging"
)

const logSubsystem = "config"

// Environment variables prefixed RUNCTL_ become run variables; the
// S_RUNCTL_ prefix additionally flags them secret.
const (
	envPrefix       = "RUNCTL_"
	secretEnvPrefix = "S_RUNCTL_"
)

// Options are the CLI-level inputs of a run.
type Options struct {
	RunID       string
	Concurrency int
	// Overrides are name=value pairs; a value with the secret sentinel
	// prefix is flagged secret.
	Overrides []string
}

// LoadRunbook reads, substitutes, parses and validates the runbook at
// path. The returned variable set is frozen: combinators derive from
// it but never mutate it.
func LoadRunbook(path string, opts Options) (*schema.Runbook, variable.Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read runbook %s: %w", path, err)
	}

	vars, err := collectVariables(raw, opts.Overrides)
	if err != nil {
		return nil, nil, err
	}

	substituted, err := vars.Replace(string(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to substitute variables in %s: %w", path, err)
	}

	var runbook schema.Runbook
	if err := yaml.Unmarshal([]byte(substituted), &runbook); err != nil {
		return nil, nil, fmt.Errorf("failed to parse runbook %s: %w", path, err)
	}
	applyDefaults(&runbook, opts)

	if err := runbook.Validate(); err != nil {
		return nil, nil, err
	}
	logging.Debug(logSubsystem, "loaded runbook %s: run %s, concurrency %d, %d filter(s)",
		path, runbook.RunID, runbook.Concurrency, len(runbook.TestCases))
	return &runbook, vars, nil
}

// collectVariables layers runbook-declared variables, RUNCTL_
// environment variables and command-line overrides, highest last.
func collectVariables(raw []byte, overrides []string) (variable.Set, error) {
	// Pre-pass: only the variables section, before substitution, so a
	// variable may be referenced anywhere else in the document.
	var head struct {
		Variables []schema.VariableDef `yaml:"variables"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("failed to parse runbook variables: %w", err)
	}

	vars := variable.FromDefs(head.Variables)
	vars = vars.Merge(fromEnviron(os.Environ()))

	cli := variable.Set{}
	for _, pair := range overrides {
		entry, err := variable.ParsePair(pair)
		if err != nil {
			return nil, err
		}
		cli.Put(entry)
	}
	return vars.Merge(cli), nil
}

func fromEnviron(environ []string) variable.Set {
	set := variable.Set{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(name, secretEnvPrefix):
			set.Put(variable.Entry{
				Name:     strings.TrimPrefix(name, secretEnvPrefix),
				Value:    value,
				IsSecret: true,
			})
		case strings.HasPrefix(name, envPrefix):
			set.Put(variable.Entry{
				Name:  strings.TrimPrefix(name, envPrefix),
				Value: value,
			})
		}
	}
	return set
}

func applyDefaults(runbook *schema.Runbook, opts Options) {
	if opts.RunID != "" {
		runbook.RunID = opts.RunID
	}
	if runbook.RunID == "" {
		runbook.RunID = fmt.Sprintf("run-%s", uuid.NewString()[:8])
	}
	if opts.Concurrency > 0 {
		runbook.Concurrency = opts.Concurrency
	}
	if runbook.Concurrency <= 0 {
		runbook.Concurrency = 1
	}
	if runbook.Platform.Kind == "" {
		runbook.Platform.Kind = "local"
	}
	if runbook.WorkDir == "" {
		runbook.WorkDir = "runctl-runs"
	}
}
