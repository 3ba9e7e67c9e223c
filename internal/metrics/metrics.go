// Package metrics evaluates a predicted clustering against gold labels
// using pairwise counting: every unordered record pair is a trial, and a
// pair is positive when both records share a cluster.
package metrics

import "fmt"

// Report holds pairwise evaluation counts and the derived scores.
type Report struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Pairwise compares predicted clusters to gold clusters. Each argument is
// a list of clusters, each cluster a list of record identifiers. Records
// absent from a grouping are treated as singletons there, so predictions
// that drop noise records are penalized through recall, not crashes.
func Pairwise(gold, predicted [][]int) (Report, error) {
	goldPairs, err := pairSet(gold)
	if err != nil {
		return Report{}, fmt.Errorf("gold clustering: %w", err)
	}
	predPairs, err := pairSet(predicted)
	if err != nil {
		return Report{}, fmt.Errorf("predicted clustering: %w", err)
	}

	var r Report
	for p := range predPairs {
		if goldPairs[p] {
			r.TruePositives++
		} else {
			r.FalsePositives++
		}
	}
	for p := range goldPairs {
		if !predPairs[p] {
			r.FalseNegatives++
		}
	}

	if r.TruePositives+r.FalsePositives > 0 {
		r.Precision = float64(r.TruePositives) / float64(r.TruePositives+r.FalsePositives)
	}
	if r.TruePositives+r.FalseNegatives > 0 {
		r.Recall = float64(r.TruePositives) / float64(r.TruePositives+r.FalseNegatives)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r, nil
}

type pair struct{ a, b int }

func pairSet(clusters [][]int) (map[pair]bool, error) {
	out := make(map[pair]bool)
	seen := make(map[int]bool)
	for _, members := range clusters {
		for _, id := range members {
			if seen[id] {
				return nil, fmt.Errorf("record %d appears in more than one cluster", id)
			}
			seen[id] = true
		}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if a > b {
					a, b = b, a
				}
				out[pair{a, b}] = true
			}
		}
	}
	return out, nil
}
