package score

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkit/dedupe/internal/compare"
	"github.com/recordkit/dedupe/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAggregationIdentities(t *testing.T) {
	// mean([1.0, 0.5, 0.0]) = 0.5, min = 0.0, max = 1.0
	scores := []float64{1.0, 0.5, 0.0}
	attrs := []string{"a", "b", "c"}

	tests := []struct {
		strategy Strategy
		want     float64
	}{
		{Mean, 0.5},
		{Median, 0.5},
		{Min, 0.0},
		{Max, 1.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			agg, err := NewAggregator(tt.strategy, attrs, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, agg(attrs, scores), 1e-9)
		})
	}
}

func TestMedianEvenCount(t *testing.T) {
	agg, err := NewAggregator(Median, []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, agg([]string{"a", "b"}, []float64{0.3, 0.6}), 1e-9)
}

func TestWeightedAggregation(t *testing.T) {
	attrs := []string{"name", "phone"}
	// Weights need not sum to 1; they are normalized internally.
	agg, err := NewAggregator(Weighted, attrs, map[string]float64{"name": 3, "phone": 1})
	require.NoError(t, err)
	got := agg(attrs, []float64{1.0, 0.0})
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestWeightedConfigurationErrors(t *testing.T) {
	attrs := []string{"name"}
	tests := []struct {
		name    string
		weights map[string]float64
	}{
		{"no weights", nil},
		{"unknown attribute", map[string]float64{"phone": 1}},
		{"negative weight", map[string]float64{"name": -1}},
		{"all zero", map[string]float64{"name": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAggregator(Weighted, attrs, tt.weights)
			assert.Error(t, err)
		})
	}
}

func TestUnknownStrategyFailsFast(t *testing.T) {
	_, err := NewAggregator("geometric", []string{"a"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown aggregation strategy")
}

func TestScoreBlockAllPairs(t *testing.T) {
	recs := []types.Record{
		types.NewRecord(0, map[string]any{"name": "Jon"}),
		types.NewRecord(1, map[string]any{"name": "Jon"}),
		types.NewRecord(2, map[string]any{"name": "Amy"}),
	}
	registry := compare.Registry{{Attribute: "name", Comparator: compare.Exact{}}}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	got, err := s.ScoreBlock(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, got, 3, "C(3,2) pairs")

	byPair := make(map[[2]int]float64)
	for _, as := range got {
		byPair[[2]int{as.A, as.B}] = as.Score
	}
	assert.Equal(t, 1.0, byPair[[2]int{0, 1}])
	assert.Equal(t, 0.0, byPair[[2]int{0, 2}])
	assert.Equal(t, 0.0, byPair[[2]int{1, 2}])
}

func TestScorePairPerAttributeBreakdown(t *testing.T) {
	a := types.NewRecord(3, map[string]any{"name": "Jon", "phone": "555"})
	b := types.NewRecord(1, map[string]any{"name": "Jon"})
	registry := compare.Registry{
		{Attribute: "name", Comparator: compare.Exact{}},
		{Attribute: "phone", Comparator: compare.Exact{}},
	}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	ps, err := s.ScorePair(context.Background(), a, b)
	require.NoError(t, err)
	require.NoError(t, ps.Validate())

	assert.Equal(t, 1, ps.A, "pair is ordered regardless of argument order")
	assert.Equal(t, 3, ps.B)
	assert.Equal(t, 1.0, ps.Scores["name"])
	assert.Equal(t, 0.0, ps.Scores["phone"], "missing on one side scores 0")
}

func TestScorePairContextCancellation(t *testing.T) {
	registry := compare.Registry{{Attribute: "name", Comparator: compare.Exact{}}}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ScorePair(ctx, types.NewRecord(0, nil), types.NewRecord(1, nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreBlockMissingAttributeScoresZero(t *testing.T) {
	recs := []types.Record{
		types.NewRecord(0, map[string]any{"name": "Jon", "phone": "555"}),
		types.NewRecord(1, map[string]any{"name": "Jon"}),
	}
	registry := compare.Registry{
		{Attribute: "name", Comparator: compare.Exact{}},
		{Attribute: "phone", Comparator: compare.Exact{}},
	}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	got, err := s.ScoreBlock(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// name=1.0, phone missing on one side=0.0 => mean 0.5
	assert.InDelta(t, 0.5, got[0].Score, 1e-9)
}

func TestScoreBlockComparatorFailureDegrades(t *testing.T) {
	recs := []types.Record{
		types.NewRecord(0, map[string]any{"name": "Jon"}),
		types.NewRecord(1, map[string]any{"name": "Jon"}),
	}
	failing := compare.Func(func(ctx context.Context, a, b any) (float64, error) {
		return 0, errors.New("backend unavailable")
	})
	registry := compare.Registry{
		{Attribute: "name", Comparator: compare.Exact{}},
		{Attribute: "alias", Comparator: failing},
	}
	recs[0].Attrs["alias"] = "jonny"
	recs[1].Attrs["alias"] = "jonny"
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	got, err := s.ScoreBlock(context.Background(), recs)
	require.NoError(t, err, "comparator failure must not abort the run")
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Score, 1e-9)
}

func TestScoreBlockPairCapIsDeterministic(t *testing.T) {
	var recs []types.Record
	for i := 0; i < 6; i++ {
		recs = append(recs, types.NewRecord(i, map[string]any{"name": "x"}))
	}
	registry := compare.Registry{{Attribute: "name", Comparator: compare.Exact{}}}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 4, quietLogger())

	first, err := s.ScoreBlock(context.Background(), recs)
	require.NoError(t, err)
	second, err := s.ScoreBlock(context.Background(), recs)
	require.NoError(t, err)

	assert.Len(t, first, 4)
	assert.Equal(t, first, second)
	// Lexicographic prefix: (0,1) (0,2) (0,3) (0,4)
	assert.Equal(t, 0, first[0].A)
	assert.Equal(t, 1, first[0].B)
	assert.Equal(t, 0, first[3].A)
	assert.Equal(t, 4, first[3].B)
}

func TestScoreBlockSmallBlocks(t *testing.T) {
	registry := compare.Registry{{Attribute: "name", Comparator: compare.Exact{}}}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	got, err := s.ScoreBlock(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ScoreBlock(context.Background(), []types.Record{types.NewRecord(0, nil)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScoreBlockContextCancellation(t *testing.T) {
	recs := []types.Record{
		types.NewRecord(0, map[string]any{"name": "a"}),
		types.NewRecord(1, map[string]any{"name": "b"}),
	}
	registry := compare.Registry{{Attribute: "name", Comparator: compare.Exact{}}}
	agg, err := NewAggregator(Mean, registry.Attributes(), nil)
	require.NoError(t, err)
	s := NewScorer(registry, agg, 0, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.ScoreBlock(ctx, recs)
	assert.ErrorIs(t, err, context.Canceled)
}
