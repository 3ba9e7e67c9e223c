package cluster

import "fmt"

// Noise is the label assigned to records that belong to no local cluster.
const Noise = -1

// Clusterer is the density-based clustering capability. Given a
// precomputed distance matrix it returns one label per matrix position,
// with Noise marking unclustered positions. Implementations are treated
// as an oracle: a failure makes the orchestrator degrade that sub-block
// to all-noise rather than abort the run.
type Clusterer interface {
	Cluster(m *DistanceMatrix) ([]int, error)
}

// DBSCAN clusters over a precomputed distance matrix: a position with at
// least MinSamples neighbours (itself included) within Eps is a core
// point, and clusters grow by expanding density-reachable neighbours.
type DBSCAN struct {
	// Eps is the neighbourhood radius in distance units.
	Eps float64

	// MinSamples is the minimum neighbourhood size (including the point
	// itself) for a core point.
	MinSamples int
}

// Validate checks the clustering parameters.
func (c DBSCAN) Validate() error {
	if c.Eps < 0 || c.Eps > 1 {
		return fmt.Errorf("eps must be between 0 and 1 (got %g)", c.Eps)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("min_samples must be at least 1 (got %d)", c.MinSamples)
	}
	return nil
}

// Cluster implements Clusterer.
func (c DBSCAN) Cluster(m *DistanceMatrix) ([]int, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("malformed distance matrix: %w", err)
	}

	n := m.Len()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)

	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbours := c.regionQuery(m, i)
		if len(neighbours) < c.MinSamples {
			continue // stays noise unless later absorbed by a cluster
		}

		labels[i] = next
		c.expand(m, neighbours, next, labels, visited)
		next++
	}
	return labels, nil
}

// expand grows a cluster from a core point's neighbourhood.
func (c DBSCAN) expand(m *DistanceMatrix, seeds []int, label int, labels []int, visited []bool) {
	for k := 0; k < len(seeds); k++ {
		p := seeds[k]
		if labels[p] == Noise {
			labels[p] = label
		}
		if visited[p] {
			continue
		}
		visited[p] = true
		neighbours := c.regionQuery(m, p)
		if len(neighbours) >= c.MinSamples {
			seeds = append(seeds, neighbours...)
		}
	}
}

// regionQuery returns every position within Eps of i, including i.
func (c DBSCAN) regionQuery(m *DistanceMatrix, i int) []int {
	var out []int
	for j := 0; j < m.Len(); j++ {
		if m.At(i, j) <= c.Eps {
			out = append(out, j)
		}
	}
	return out
}
