package score

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recordkit/dedupe/internal/compare"
	"github.com/recordkit/dedupe/internal/types"
)

// Scorer computes aggregated pairwise similarities within one sub-block.
// It is safe for concurrent use across sub-blocks.
type Scorer struct {
	registry compare.Registry
	attrs    []string
	agg      AggregateFunc

	// maxPairs caps the number of pairs scored per sub-block; zero means
	// no cap. The cap is deterministic: pairs are generated in
	// lexicographic (i, j) order and the tail is dropped, so the same
	// input always scores the same pairs.
	maxPairs int

	log *slog.Logger
}

// NewScorer builds a scorer from a validated registry and an aggregation
// function.
func NewScorer(registry compare.Registry, agg AggregateFunc, maxPairs int, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	return &Scorer{
		registry: registry,
		attrs:    registry.Attributes(),
		agg:      agg,
		maxPairs: maxPairs,
		log:      log,
	}
}

// ScoreBlock scores all unordered record pairs of a sub-block (or the
// deterministic prefix when a pair cap is configured) and aggregates each
// pair's attribute scores.
//
// A missing attribute on either side scores 0 for that attribute. A
// comparator failure also scores 0 and is logged as a warning; it never
// aborts the run. The only returned error is context cancellation.
func (s *Scorer) ScoreBlock(ctx context.Context, recs []types.Record) ([]types.AggregatedScore, error) {
	n := len(recs)
	if n < 2 {
		return nil, nil
	}

	var out []types.AggregatedScore
	scores := make([]float64, len(s.attrs))
	pairs := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if s.maxPairs > 0 && pairs >= s.maxPairs {
				return out, nil
			}
			pairs++

			a, b := recs[i], recs[j]
			for k, entry := range s.registry {
				scores[k] = s.scoreAttribute(ctx, entry, a, b)
			}
			agg := s.agg(s.attrs, scores)
			if agg < 0 {
				agg = 0
			}
			if agg > 1 {
				agg = 1
			}
			lo, hi := a.ID, b.ID
			if lo > hi {
				lo, hi = hi, lo
			}
			out = append(out, types.AggregatedScore{A: lo, B: hi, Score: agg})
		}
	}
	return out, nil
}

// ScorePair scores one record pair attribute by attribute under the same
// missing-value and comparator-failure policies as ScoreBlock, keeping
// the per-attribute breakdown instead of aggregating it.
func (s *Scorer) ScorePair(ctx context.Context, a, b types.Record) (types.PairScore, error) {
	if err := ctx.Err(); err != nil {
		return types.PairScore{}, err
	}
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	ps := types.PairScore{A: lo, B: hi, Scores: make(map[string]float64, len(s.registry))}
	for _, entry := range s.registry {
		ps.Scores[entry.Attribute] = s.scoreAttribute(ctx, entry, a, b)
	}
	return ps, nil
}

// scoreAttribute scores one attribute of one pair, applying the
// missing-value and comparator-failure policies.
func (s *Scorer) scoreAttribute(ctx context.Context, entry compare.Entry, a, b types.Record) float64 {
	va, okA := a.Get(entry.Attribute)
	vb, okB := b.Get(entry.Attribute)
	if !okA || !okB {
		// Missing on either side is maximal dissimilarity for this
		// attribute, not an error.
		return 0
	}
	v, err := entry.Comparator.Score(ctx, va, vb)
	if err != nil {
		s.log.Warn("comparator failed, scoring attribute as 0",
			"attribute", entry.Attribute,
			"pair", fmt.Sprintf("%d/%d", a.ID, b.ID),
			"error", err)
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
