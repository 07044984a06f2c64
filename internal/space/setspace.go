package space

import (
	"fmt"
	"strings"
)

// SetSpace is an ordered, deduplicated set constraint. IsAllowSet
// selects the semantics: true means "any of these items is acceptable"
// (inclusion, the requirement side of features), false means "none of
// these items is acceptable" (exclusion lists). A SetSpace never mixes
// the two.
type SetSpace[T comparable] struct {
	IsAllowSet bool
	items      []T
	index      map[T]struct{}
}

// NewSetSpace builds a SetSpace with the given semantics and items.
func NewSetSpace[T comparable](allow bool, items ...T) *SetSpace[T] {
	s := &SetSpace[T]{IsAllowSet: allow, index: make(map[T]struct{})}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add appends an item, keeping insertion order and ignoring duplicates.
func (s *SetSpace[T]) Add(item T) {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[item]; ok {
		return
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
}

// Has reports whether the item is in the set.
func (s *SetSpace[T]) Has(item T) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[item]
	return ok
}

// Items returns the items in insertion order. The returned slice is
// shared; callers must not mutate it.
func (s *SetSpace[T]) Items() []T {
	if s == nil {
		return nil
	}
	return s.items
}

// Len returns the number of items.
func (s *SetSpace[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *SetSpace[T]) String() string {
	if s == nil {
		return "nil"
	}
	parts := make([]string, 0, len(s.items))
	for _, item := range s.items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	verb := "allow"
	if !s.IsAllowSet {
		verb = "deny"
	}
	return fmt.Sprintf("%s{%s}", verb, strings.Join(parts, ","))
}

// CheckSetSpace verifies an inclusion requirement against a capability
// set: every required item must be offered. An empty or nil requirement
// is always satisfied; the capability exposing unrequested items is not
// an error.
func CheckSetSpace[T comparable](req, cap *SetSpace[T]) ResultReason {
	var result ResultReason
	if req.Len() == 0 {
		return result
	}
	if !req.IsAllowSet {
		result.Add("inclusion requirement must be an allow set")
		return result
	}
	for _, item := range req.Items() {
		if !cap.Has(item) {
			result.Add("'%v' is not offered by capability %s", item, cap)
		}
	}
	return result
}

// CheckExcluded verifies an exclusion requirement: the capability must
// not offer any of the excluded items.
func CheckExcluded[T comparable](excluded, cap *SetSpace[T]) ResultReason {
	var result ResultReason
	if excluded.Len() == 0 {
		return result
	}
	if excluded.IsAllowSet {
		result.Add("exclusion requirement must be a deny set")
		return result
	}
	for _, item := range excluded.Items() {
		if cap.Has(item) {
			result.Add("excluded '%v' is offered by capability", item)
		}
	}
	return result
}
