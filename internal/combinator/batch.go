package combinator

import (
	"runctl/internal/schema"
	"runctl/internal/variable"
)

// batchCombinator yields pre-enumerated override items verbatim, in
// input order.
type batchCombinator struct {
	items []map[string]string
	next  int
}

func newBatch(cfg *schema.CombinatorConfig) (Combinator, error) {
	return &batchCombinator{items: cfg.Items}, nil
}

func (b *batchCombinator) Kind() string {
	return schema.CombinatorBatch
}

func (b *batchCombinator) Fetch(current variable.Set) (variable.Set, bool) {
	if b.next >= len(b.items) {
		return nil, false
	}
	item := b.items[b.next]
	b.next++
	return overlay(current, item), true
}
