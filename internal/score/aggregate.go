// Package score turns a block of records into aggregated pairwise
// similarity scores: it generates record pairs, invokes the configured
// per-attribute comparators, and collapses the attribute scores of each
// pair into one scalar with a named aggregation strategy.
package score

import (
	"fmt"
	"sort"
)

// Strategy names an aggregation of per-attribute scores into one scalar.
type Strategy string

const (
	// Mean is the arithmetic mean of all attribute scores.
	Mean Strategy = "mean"
	// Median is the middle attribute score (mean of the middle two for
	// an even count).
	Median Strategy = "median"
	// Min is the most conservative combination: the lowest score.
	Min Strategy = "min"
	// Max is the most liberal combination: the highest score.
	Max Strategy = "max"
	// Weighted is the weighted mean with caller-supplied per-attribute
	// weights, normalized internally.
	Weighted Strategy = "weighted"
)

// AggregateFunc collapses per-attribute scores into one scalar. The
// attrs slice is aligned with scores and fixed for the life of the
// pipeline.
type AggregateFunc func(attrs []string, scores []float64) float64

// NewAggregator resolves a strategy name. Unknown names and a weighted
// strategy without weights are configuration errors, reported before any
// scoring work happens. Weights may name only configured attributes and
// need not sum to one.
func NewAggregator(s Strategy, attrs []string, weights map[string]float64) (AggregateFunc, error) {
	switch s {
	case Mean:
		return func(_ []string, scores []float64) float64 {
			return mean(scores)
		}, nil
	case Median:
		return func(_ []string, scores []float64) float64 {
			return median(scores)
		}, nil
	case Min:
		return func(_ []string, scores []float64) float64 {
			if len(scores) == 0 {
				return 0
			}
			m := scores[0]
			for _, v := range scores[1:] {
				if v < m {
					m = v
				}
			}
			return m
		}, nil
	case Max:
		return func(_ []string, scores []float64) float64 {
			if len(scores) == 0 {
				return 0
			}
			m := scores[0]
			for _, v := range scores[1:] {
				if v > m {
					m = v
				}
			}
			return m
		}, nil
	case Weighted:
		return newWeighted(attrs, weights)
	default:
		return nil, fmt.Errorf("unknown aggregation strategy %q", s)
	}
}

func newWeighted(attrs []string, weights map[string]float64) (AggregateFunc, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("weighted aggregation requires per-attribute weights")
	}
	known := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		known[a] = true
	}
	var total float64
	for attr, w := range weights {
		if !known[attr] {
			return nil, fmt.Errorf("weight for unknown attribute %q", attr)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for %q must be non-negative (got %g)", attr, w)
		}
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("weights must not all be zero")
	}
	// Normalize once; attributes without a weight contribute nothing.
	norm := make(map[string]float64, len(weights))
	for attr, w := range weights {
		norm[attr] = w / total
	}
	return func(attrs []string, scores []float64) float64 {
		var sum float64
		for i, attr := range attrs {
			sum += norm[attr] * scores[i]
		}
		return sum
	}, nil
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

func median(scores []float64) float64 {
	n := len(scores)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, scores)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
