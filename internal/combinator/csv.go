package combinator

import (
	"encoding/csv"
	"fmt"
	"os"

	"runctl/internal/schema"
	"runctl/internal/variable"
)

// csvCombinator turns the rows of a tabular file into binding sets: the
// header row defines the field names, data rows yield in file order.
type csvCombinator struct {
	header []string
	rows   [][]string
	next   int
}

func newCSV(cfg *schema.CombinatorConfig) (Combinator, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv combinator input: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv combinator input %s: %w", cfg.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv file %s has no header row", schema.ErrInvalidCombinator, cfg.Path)
	}
	return &csvCombinator{header: records[0], rows: records[1:]}, nil
}

func (c *csvCombinator) Kind() string {
	return schema.CombinatorCSV
}

func (c *csvCombinator) Fetch(current variable.Set) (variable.Set, bool) {
	if c.next >= len(c.rows) {
		return nil, false
	}
	row := c.rows[c.next]
	c.next++

	bindings := make(map[string]string, len(c.header))
	for i, name := range c.header {
		if i < len(row) {
			bindings[name] = row[i]
		}
	}
	return overlay(current, bindings), true
}
