// Package cluster groups the records of a sub-block by density over a
// precomputed distance matrix and merges the per-block results into
// globally consistent clusters.
package cluster

import (
	"fmt"

	"github.com/recordkit/dedupe/internal/types"
)

// DistanceMatrix is a symmetric n x n matrix of pairwise distances with a
// zero diagonal. Distances live in [0, 1]; 1 means "not similar or never
// compared".
type DistanceMatrix struct {
	n int
	d []float64
}

// NewDistanceMatrix returns an n x n matrix with every off-diagonal
// distance set to the maximum (1.0). Pairs that are never assigned a
// score therefore stay maximally distant, never accidentally close.
func NewDistanceMatrix(n int) *DistanceMatrix {
	m := &DistanceMatrix{n: n, d: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				m.d[i*n+j] = 1.0
			}
		}
	}
	return m
}

// FromScores builds the distance matrix of one sub-block from its
// aggregated pair scores. idx maps record IDs to matrix positions.
// Distance is 1 - score; pairs whose score falls below threshold are
// forced to maximal distance regardless of the clusterer's own density
// parameter.
func FromScores(idx map[int]int, scores []types.AggregatedScore, threshold float64) (*DistanceMatrix, error) {
	m := NewDistanceMatrix(len(idx))
	for _, s := range scores {
		i, ok := idx[s.A]
		if !ok {
			return nil, fmt.Errorf("score references record %d outside the block", s.A)
		}
		j, ok := idx[s.B]
		if !ok {
			return nil, fmt.Errorf("score references record %d outside the block", s.B)
		}
		if s.Score < threshold {
			continue
		}
		m.set(i, j, 1.0-s.Score)
	}
	return m, nil
}

// Len returns the matrix dimension.
func (m *DistanceMatrix) Len() int { return m.n }

// At returns the distance between positions i and j.
func (m *DistanceMatrix) At(i, j int) float64 { return m.d[i*m.n+j] }

func (m *DistanceMatrix) set(i, j int, v float64) {
	m.d[i*m.n+j] = v
	m.d[j*m.n+i] = v
}

// Validate checks symmetry, the zero diagonal, and the distance range.
func (m *DistanceMatrix) Validate() error {
	for i := 0; i < m.n; i++ {
		if m.At(i, i) != 0 {
			return fmt.Errorf("diagonal entry (%d,%d) must be zero (got %g)", i, i, m.At(i, i))
		}
		for j := i + 1; j < m.n; j++ {
			if m.At(i, j) != m.At(j, i) {
				return fmt.Errorf("matrix is asymmetric at (%d,%d)", i, j)
			}
			if d := m.At(i, j); d < 0 || d > 1 {
				return fmt.Errorf("distance (%d,%d) out of range: %g", i, j, d)
			}
		}
	}
	return nil
}
