package combinator

import (
	"runctl/internal/schema"
	"runctl/internal/variable"
)

// gridCombinator walks the cartesian product of its field value lists
// in lexicographic order: fields advance in declaration order with the
// last declared field varying fastest.
type gridCombinator struct {
	fields    []schema.GridField
	indexes   []int
	exhausted bool
}

func newGrid(cfg *schema.CombinatorConfig) (Combinator, error) {
	return &gridCombinator{
		fields:  cfg.Fields,
		indexes: make([]int, len(cfg.Fields)),
	}, nil
}

func (g *gridCombinator) Kind() string {
	return schema.CombinatorGrid
}

func (g *gridCombinator) Fetch(current variable.Set) (variable.Set, bool) {
	if g.exhausted {
		return nil, false
	}

	bindings := make(map[string]string, len(g.fields))
	for i, field := range g.fields {
		bindings[field.Name] = field.Values[g.indexes[i]]
	}

	// Advance like an odometer, last field fastest.
	for i := len(g.indexes) - 1; i >= 0; i-- {
		g.indexes[i]++
		if g.indexes[i] < len(g.fields[i].Values) {
			break
		}
		g.indexes[i] = 0
		if i == 0 {
			g.exhausted = true
		}
	}

	return overlay(current, bindings), true
}
