// Package compare defines the attribute-similarity capability used by the
// pairwise scorer, plus a set of built-in comparators. A comparator scores
// two attribute values in [0, 1]; which comparator applies to which
// attribute is configured explicitly on the pipeline, never through
// process-wide state.
package compare

import (
	"context"
	"fmt"
)

// Comparator scores the similarity of two attribute values.
//
// Implementations must be safe for concurrent use and should be pure:
// the pipeline may invoke them from several workers at once. Scores must
// fall in [0, 1]. Returning an error does not abort a run; the pipeline
// records a zero score for that attribute and surfaces the error as a
// warning diagnostic.
type Comparator interface {
	Score(ctx context.Context, a, b any) (float64, error)
}

// Func adapts an ordinary function to the Comparator interface.
type Func func(ctx context.Context, a, b any) (float64, error)

// Score implements Comparator.
func (f Func) Score(ctx context.Context, a, b any) (float64, error) {
	return f(ctx, a, b)
}

// Entry binds an attribute name (dot-path) to the comparator that scores
// it. The ordered entry list of a pipeline is its comparator registry.
type Entry struct {
	Attribute  string
	Comparator Comparator
}

// Registry is an ordered set of attribute/comparator bindings. Order is
// significant: it fixes the attribute order seen by weighted aggregation
// and by diagnostics.
type Registry []Entry

// Validate checks the registry for construction errors.
func (r Registry) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("at least one comparator is required")
	}
	seen := make(map[string]bool, len(r))
	for i, e := range r {
		if e.Attribute == "" {
			return fmt.Errorf("comparator %d has no attribute name", i)
		}
		if e.Comparator == nil {
			return fmt.Errorf("comparator for %q is nil", e.Attribute)
		}
		if seen[e.Attribute] {
			return fmt.Errorf("duplicate comparator for attribute %q", e.Attribute)
		}
		seen[e.Attribute] = true
	}
	return nil
}

// Attributes returns the attribute names in registry order.
func (r Registry) Attributes() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = e.Attribute
	}
	return out
}

// Lookup returns the comparator bound to an attribute.
func (r Registry) Lookup(attribute string) (Comparator, bool) {
	for _, e := range r {
		if e.Attribute == attribute {
			return e.Comparator, true
		}
	}
	return nil, false
}

// asString renders a comparator input as a string. Comparators tolerate
// arbitrary value types since records carry untyped attributes.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
