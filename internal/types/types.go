package types

import (
	"fmt"
	"sort"
	"strings"
)

// Record is a single input record: a flat mapping from attribute name to
// value plus a stable identifier. Records are assigned their identifier at
// ingestion (index in the original input sequence) and are never mutated by
// the pipeline; every stage reads attribute values through Get.
//
// Nested input maps are flattened into dot-paths at construction, so a
// record built from {"name": {"first": "Jon"}} exposes the attribute
// "name.first".
type Record struct {
	// ID is the record's position in the original input sequence.
	// It is the identity used in blocks, pair scores, and clusters.
	ID int

	// Attrs maps flattened attribute names (dot-paths) to values.
	Attrs map[string]any
}

// NewRecord builds a Record from a raw attribute map, flattening nested
// maps into dot-path keys.
func NewRecord(id int, attrs map[string]any) Record {
	flat := make(map[string]any, len(attrs))
	flatten("", attrs, flat)
	return Record{ID: id, Attrs: flat}
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// Get returns the value of an attribute by its dot-path name.
// A missing attribute is not an error; the second return value reports
// presence. Nil values are treated as absent.
func (r Record) Get(path string) (any, bool) {
	v, ok := r.Attrs[path]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// GetString returns the attribute value rendered as a string, or "" if the
// attribute is absent.
func (r Record) GetString(path string) (string, bool) {
	v, ok := r.Get(path)
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

// PairScore holds the per-attribute similarity scores for one unordered
// record pair within a block. A < B always.
type PairScore struct {
	A      int                `json:"a"`
	B      int                `json:"b"`
	Scores map[string]float64 `json:"scores"`
}

// Validate checks the pair score for internal consistency.
func (p PairScore) Validate() error {
	if p.A >= p.B {
		return fmt.Errorf("pair must be ordered (got a=%d, b=%d)", p.A, p.B)
	}
	for attr, s := range p.Scores {
		if s < 0.0 || s > 1.0 {
			return fmt.Errorf("score for %q must be between 0.0 and 1.0 (got %.4f)", attr, s)
		}
	}
	return nil
}

// AggregatedScore is a pair's per-attribute scores collapsed into one
// scalar similarity by the configured aggregation strategy.
type AggregatedScore struct {
	A     int     `json:"a"`
	B     int     `json:"b"`
	Score float64 `json:"score"`
}

// Validate checks the aggregated score for internal consistency.
func (a AggregatedScore) Validate() error {
	if a.A >= a.B {
		return fmt.Errorf("pair must be ordered (got a=%d, b=%d)", a.A, a.B)
	}
	if a.Score < 0.0 || a.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0 (got %.4f)", a.Score)
	}
	return nil
}

// Cluster is a final group of records resolved to the same entity.
// Cluster IDs are arbitrary and stable only within one run.
type Cluster struct {
	ID      string   `json:"id"`
	Members []Record `json:"members"`
}

// MemberIDs returns the sorted record identifiers of the cluster members.
func (c Cluster) MemberIDs() []int {
	ids := make([]int, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	sort.Ints(ids)
	return ids
}

// MinMemberID returns the smallest record identifier in the cluster, or -1
// for an empty cluster. Final output is ordered by this value.
func (c Cluster) MinMemberID() int {
	if len(c.Members) == 0 {
		return -1
	}
	min := c.Members[0].ID
	for _, m := range c.Members[1:] {
		if m.ID < min {
			min = m.ID
		}
	}
	return min
}

// Validate checks the cluster for internal consistency.
func (c Cluster) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("cluster id is required")
	}
	if len(c.Members) == 0 {
		return fmt.Errorf("cluster %s has no members", c.ID)
	}
	seen := make(map[int]bool, len(c.Members))
	for _, m := range c.Members {
		if seen[m.ID] {
			return fmt.Errorf("cluster %s contains record %d twice", c.ID, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// String returns a compact human-readable form, e.g. "a1b2 [0 1 4]".
func (c Cluster) String() string {
	ids := c.MemberIDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	short := c.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s [%s]", short, strings.Join(parts, " "))
}
