package space

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Common errors for count negotiation.
var (
	// ErrUnsatisfiable is returned when no concrete value exists that both
	// sides of a negotiation accept.
	ErrUnsatisfiable = errors.New("no value satisfies both requirement and capability")
)

type countKind int

const (
	countUnset countKind = iota
	countExact
	countRange
)

// Count is a value space over non-negative integers: unset, an exact
// value, or a range with an optional upper bound. An open upper bound
// marks the offered resource as elastic, provisioned at or above the
// stated floor.
type Count struct {
	kind   countKind
	value  int
	min    int
	max    int
	hasMax bool
}

// ExactCount returns a Count pinned to a single value.
func ExactCount(v int) Count {
	return Count{kind: countExact, value: v}
}

// MinCount returns an open-ended range starting at min.
func MinCount(min int) Count {
	return Count{kind: countRange, min: min}
}

// RangeCount returns a bounded range [min, max].
func RangeCount(min, max int) Count {
	return Count{kind: countRange, min: min, max: max, hasMax: true}
}

// IsSet reports whether the count carries any constraint at all.
func (c Count) IsSet() bool {
	return c.kind != countUnset
}

// Exact returns the pinned value and whether the count is exact.
func (c Count) Exact() (int, bool) {
	return c.value, c.kind == countExact
}

// Floor returns the smallest value this count admits.
func (c Count) Floor() int {
	switch c.kind {
	case countExact:
		return c.value
	case countRange:
		return c.min
	default:
		return 0
	}
}

// Contains reports whether a concrete value falls inside the count.
// An unset count admits everything.
func (c Count) Contains(v int) bool {
	switch c.kind {
	case countExact:
		return v == c.value
	case countRange:
		if v < c.min {
			return false
		}
		return !c.hasMax || v <= c.max
	default:
		return true
	}
}

func (c Count) String() string {
	switch c.kind {
	case countExact:
		return fmt.Sprintf("%d", c.value)
	case countRange:
		if c.hasMax {
			return fmt.Sprintf("[%d..%d]", c.min, c.max)
		}
		return fmt.Sprintf("[%d..]", c.min)
	default:
		return "unset"
	}
}

// CheckCount verifies that a capability count can satisfy a requirement
// count. Count-like resources are monotonic: offering more than asked is
// always acceptable, offering fewer never is.
func CheckCount(req, cap Count) ResultReason {
	var result ResultReason
	if !req.IsSet() {
		return result
	}
	if !cap.IsSet() {
		result.Add("requirement %s cannot be satisfied by an absent capability", req)
		return result
	}

	reqValue, reqExact := req.Exact()
	capValue, capExact := cap.Exact()
	switch {
	case reqExact && capExact:
		if capValue < reqValue {
			result.Add("capability %d is smaller than requirement %d", capValue, reqValue)
		}
	case reqExact && !capExact:
		// Elastic capability: it only needs to reach the required value.
		if cap.hasMax && cap.max < reqValue {
			result.Add("capability %s tops out below requirement %d", cap, reqValue)
		}
	case !reqExact && capExact:
		if capValue < req.min {
			result.Add("capability %d is smaller than requirement floor %d", capValue, req.min)
		}
	default:
		// Both ranges: the capability must be able to reach the
		// requirement's floor.
		if cap.hasMax && cap.max < req.min {
			result.Add("capability %s tops out below requirement floor %d", cap, req.min)
		}
	}
	return result
}

// GenerateMinCount computes the smallest concrete value that satisfies
// the requirement and is realizable by the capability. It assumes
// CheckCount has already passed.
func GenerateMinCount(req, cap Count) (int, error) {
	if !req.IsSet() && !cap.IsSet() {
		return 0, nil
	}
	if !req.IsSet() {
		req = cap
	}
	if !cap.IsSet() {
		cap = req
	}

	if capValue, capExact := cap.Exact(); capExact {
		// A fixed capability offers exactly one size.
		if capValue < req.Floor() {
			return 0, fmt.Errorf("%w: requirement %s, capability %s", ErrUnsatisfiable, req, cap)
		}
		return capValue, nil
	}

	// Elastic capability: take the requirement's floor, never dropping
	// below the capability's own floor.
	value := req.Floor()
	if cap.Floor() > value {
		value = cap.Floor()
	}
	if cap.hasMax && value > cap.max {
		return 0, fmt.Errorf("%w: requirement %s, capability %s", ErrUnsatisfiable, req, cap)
	}
	return value, nil
}

// countYAML is the YAML shape of a ranged Count.
type countYAML struct {
	Min int  `yaml:"min"`
	Max *int `yaml:"max,omitempty"`
}

// UnmarshalYAML decodes either a bare integer (exact) or a {min, max}
// mapping (range; max optional).
func (c *Count) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v int
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("invalid count value: %w", err)
		}
		*c = ExactCount(v)
		return nil
	case yaml.MappingNode:
		var raw countYAML
		if err := node.Decode(&raw); err != nil {
			return fmt.Errorf("invalid count range: %w", err)
		}
		if raw.Max != nil {
			if *raw.Max < raw.Min {
				return fmt.Errorf("invalid count range: max %d below min %d", *raw.Max, raw.Min)
			}
			*c = RangeCount(raw.Min, *raw.Max)
		} else {
			*c = MinCount(raw.Min)
		}
		return nil
	default:
		return fmt.Errorf("invalid count node kind %d", node.Kind)
	}
}

// MarshalYAML encodes exact counts as bare integers and ranges as
// {min, max} mappings.
func (c Count) MarshalYAML() (interface{}, error) {
	switch c.kind {
	case countExact:
		return c.value, nil
	case countRange:
		raw := countYAML{Min: c.min}
		if c.hasMax {
			max := c.max
			raw.Max = &max
		}
		return raw, nil
	default:
		return nil, nil
	}
}
