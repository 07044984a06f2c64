// Package variable implements named run variables with secret masking
// and $(name) substitution in runbook text.
package variable

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"runctl/internal/schema"
)

// SecretPrefix marks a command-line value as secret: the prefix is
// stripped and the value never appears in logs or serialized output.
const SecretPrefix = "secret:"

var (
	// ErrInvalidPair is returned for malformed name=value overrides.
	ErrInvalidPair = errors.New("invalid variable pair")
	// ErrUndefined is returned when substitution hits an unknown name.
	ErrUndefined = errors.New("undefined variable")
)

var pattern = regexp.MustCompile(`\$\(([A-Za-z0-9_\-.]+)\)`)

// Entry is one named variable. Secret entries mask their value in any
// textual rendering; case-visible entries are handed to test cases.
type Entry struct {
	Name          string
	Value         string
	IsSecret      bool
	IsCaseVisible bool
}

// String renders the entry, masking secret values.
func (e Entry) String() string {
	return fmt.Sprintf("%s=%s", e.Name, e.Display())
}

// Display returns the value, masked when secret.
func (e Entry) Display() string {
	if e.IsSecret {
		return "******"
	}
	return e.Value
}

// Set is a named collection of entries. Lookups are case-insensitive on
// the variable name, matching how runbooks reference them.
type Set map[string]Entry

// FromDefs builds a Set from runbook variable definitions.
func FromDefs(defs []schema.VariableDef) Set {
	set := make(Set, len(defs))
	for _, def := range defs {
		set.Put(Entry{
			Name:          def.Name,
			Value:         def.Value,
			IsSecret:      def.IsSecret,
			IsCaseVisible: def.IsCaseVisible,
		})
	}
	return set
}

// Put stores an entry under its lowercased name.
func (s Set) Put(e Entry) {
	s[strings.ToLower(e.Name)] = e
}

// Get looks an entry up by name.
func (s Set) Get(name string) (Entry, bool) {
	e, ok := s[strings.ToLower(name)]
	return e, ok
}

// Clone returns an independent copy; the frozen original set is never
// mutated once the scheduler starts.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge overlays higher-priority entries onto a copy of the set. Secret
// and case-visible flags are sticky: once set by either side they stay.
func (s Set) Merge(higher Set) Set {
	out := s.Clone()
	for k, v := range higher {
		if existing, ok := out[k]; ok {
			v.IsSecret = v.IsSecret || existing.IsSecret
			v.IsCaseVisible = v.IsCaseVisible || existing.IsCaseVisible
		}
		out[k] = v
	}
	return out
}

// CaseVisible returns only the entries test cases may see.
func (s Set) CaseVisible() Set {
	out := Set{}
	for k, v := range s {
		if v.IsCaseVisible {
			out[k] = v
		}
	}
	return out
}

// ParsePair parses a command-line "name=value" override. A value
// starting with the secret sentinel prefix is flagged secret and the
// prefix stripped.
func ParsePair(pair string) (Entry, error) {
	name, value, ok := strings.Cut(pair, "=")
	if !ok || name == "" {
		return Entry{}, fmt.Errorf("%w: %q, expected name=value", ErrInvalidPair, pair)
	}
	entry := Entry{Name: name, Value: value}
	if strings.HasPrefix(value, SecretPrefix) {
		entry.Value = strings.TrimPrefix(value, SecretPrefix)
		entry.IsSecret = true
	}
	return entry, nil
}

// Replace substitutes every $(name) reference in text. Unknown names
// are an error so typos fail the run before scheduling.
func (s Set) Replace(text string) (string, error) {
	var firstErr error
	out := pattern.ReplaceAllStringFunc(text, func(match string) string {
		name := pattern.FindStringSubmatch(match)[1]
		entry, ok := s.Get(name)
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: $(%s)", ErrUndefined, name)
			}
			return match
		}
		return entry.Value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Mask replaces every secret value occurring in text with asterisks.
// Notifiers run all free text through this before emitting it.
func (s Set) Mask(text string) string {
	for _, e := range s {
		if e.IsSecret && e.Value != "" {
			text = strings.ReplaceAll(text, e.Value, "******")
		}
	}
	return text
}
