package space

import (
	"fmt"
	"strings"
)

// ResultReason accumulates the independent reasons a Check failed. An
// empty ResultReason means the requirement is satisfied.
type ResultReason struct {
	reasons []string
}

// Add records one failure reason.
func (r *ResultReason) Add(format string, args ...interface{}) {
	if len(args) > 0 {
		r.reasons = append(r.reasons, fmt.Sprintf(format, args...))
		return
	}
	r.reasons = append(r.reasons, format)
}

// Merge folds a sub-check's reasons into this result, qualifying each
// with the field name so nested failures read as a path.
func (r *ResultReason) Merge(sub ResultReason, field string) {
	for _, reason := range sub.reasons {
		if field != "" {
			reason = fmt.Sprintf("%s: %s", field, reason)
		}
		r.reasons = append(r.reasons, reason)
	}
}

// IsSatisfied reports whether no failure reason was recorded.
func (r ResultReason) IsSatisfied() bool {
	return len(r.reasons) == 0
}

// Reasons returns the recorded failure reasons in insertion order.
func (r ResultReason) Reasons() []string {
	return r.reasons
}

func (r ResultReason) String() string {
	return strings.Join(r.reasons, "; ")
}
