package blocking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkit/dedupe/internal/types"
)

func TestIdentitySplitter(t *testing.T) {
	recs := records(
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
	)
	sub := Identity{}.Split(recs)
	require.Len(t, sub, 1)
	assert.Equal(t, recs, sub[0])
}

func TestSortedNeighbourhoodPassThrough(t *testing.T) {
	recs := records(
		map[string]any{"name": "b"},
		map[string]any{"name": "a"},
	)
	s := SortedNeighbourhood{Fields: []string{"name"}, Window: 5}
	sub := s.Split(recs)
	require.Len(t, sub, 1, "blocks within the window pass through unsplit")
	assert.Equal(t, recs, sub[0])
}

func TestSortedNeighbourhoodPartition(t *testing.T) {
	// 10 records, window 3: ceil(10/3) = 4 sub-blocks, each <= 3,
	// covering every record exactly once.
	var attrs []map[string]any
	for i := 0; i < 10; i++ {
		attrs = append(attrs, map[string]any{"name": fmt.Sprintf("n%02d", 9-i)})
	}
	recs := records(attrs...)

	s := SortedNeighbourhood{Fields: []string{"name"}, Window: 3}
	sub := s.Split(recs)
	require.Len(t, sub, 4)

	seen := make(map[int]int)
	for _, blk := range sub {
		assert.LessOrEqual(t, len(blk), 3)
		for _, r := range blk {
			seen[r.ID]++
		}
	}
	for id := 0; id < 10; id++ {
		assert.Equal(t, 1, seen[id], "record %d must appear exactly once", id)
	}
}

func TestSortedNeighbourhoodSortsByFieldTuple(t *testing.T) {
	recs := records(
		map[string]any{"surname": "smith", "dob": "1990"},
		map[string]any{"surname": "adams", "dob": "1970"},
		map[string]any{"surname": "smith", "dob": "1950"},
		map[string]any{"surname": "adams", "dob": "1980"},
	)
	s := SortedNeighbourhood{Fields: []string{"surname", "dob"}, Window: 2}
	sub := s.Split(recs)
	require.Len(t, sub, 2)
	// adams/1970, adams/1980 | smith/1950, smith/1990
	assert.Equal(t, []int{1, 3}, subIDs(sub[0]))
	assert.Equal(t, []int{2, 0}, subIDs(sub[1]))
}

func TestSortedNeighbourhoodOverlap(t *testing.T) {
	var attrs []map[string]any
	for i := 0; i < 5; i++ {
		attrs = append(attrs, map[string]any{"name": fmt.Sprintf("n%d", i)})
	}
	recs := records(attrs...)

	s := SortedNeighbourhood{Fields: []string{"name"}, Window: 3, Step: 2}
	sub := s.Split(recs)
	require.Len(t, sub, 2)
	assert.Equal(t, []int{0, 1, 2}, subIDs(sub[0]))
	// Overlapping boundary: record 2 appears in both windows.
	assert.Equal(t, []int{2, 3, 4}, subIDs(sub[1]))
}

func TestSortedNeighbourhoodMissingFieldSortsFirst(t *testing.T) {
	recs := records(
		map[string]any{"name": "zed"},
		map[string]any{},
		map[string]any{"name": "ann"},
	)
	s := SortedNeighbourhood{Fields: []string{"name"}, Window: 2}
	sub := s.Split(recs)
	require.Len(t, sub, 2)
	assert.Equal(t, []int{1, 2}, subIDs(sub[0]))
	assert.Equal(t, []int{0}, subIDs(sub[1]))
}

func TestSortedNeighbourhoodValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       SortedNeighbourhood
		wantErr bool
	}{
		{"valid", SortedNeighbourhood{Fields: []string{"name"}, Window: 10}, false},
		{"valid with step", SortedNeighbourhood{Fields: []string{"name"}, Window: 10, Step: 5}, false},
		{"step equals window", SortedNeighbourhood{Fields: []string{"name"}, Window: 10, Step: 10}, false},
		{"no fields", SortedNeighbourhood{Window: 10}, true},
		{"window too small", SortedNeighbourhood{Fields: []string{"name"}, Window: 1}, true},
		{"negative step", SortedNeighbourhood{Fields: []string{"name"}, Window: 5, Step: -1}, true},
		{"step exceeds window", SortedNeighbourhood{Fields: []string{"name"}, Window: 5, Step: 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func subIDs(recs []types.Record) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
