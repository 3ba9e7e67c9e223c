package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkit/dedupe/internal/types"
)

func records(attrs ...map[string]any) []types.Record {
	out := make([]types.Record, len(attrs))
	for i, a := range attrs {
		out[i] = types.NewRecord(i, a)
	}
	return out
}

func TestBuildGroupsByKey(t *testing.T) {
	recs := records(
		map[string]any{"phone": "555", "name": "Jon"},
		map[string]any{"phone": "555", "name": "John"},
		map[string]any{"phone": "777", "name": "Amy"},
	)

	blocks := Build(recs, Exact("phone"))
	require.Len(t, blocks, 2)
	assert.Equal(t, []int{0, 1}, ids(blocks[0]))
	assert.Equal(t, []int{2}, ids(blocks[1]))
}

func TestBuildNeverDropsRecords(t *testing.T) {
	// Record 2 has no phone; it must fall back to a singleton block.
	recs := records(
		map[string]any{"phone": "555"},
		map[string]any{"phone": "555"},
		map[string]any{"name": "Amy"},
	)

	blocks := Build(recs, Exact("phone"))

	seen := make(map[int]int)
	for _, b := range blocks {
		for _, r := range b.Records {
			seen[r.ID]++
		}
	}
	for id := 0; id < len(recs); id++ {
		assert.GreaterOrEqual(t, seen[id], 1, "record %d must appear in at least one block", id)
	}
}

func TestBuildOrPlacesRecordInMultipleBlocks(t *testing.T) {
	recs := records(
		map[string]any{"phone": "555", "email": "a@b"},
		map[string]any{"phone": "555"},
		map[string]any{"email": "a@b"},
	)

	blocks := Build(recs, Or(Exact("phone"), Exact("email")))
	require.Len(t, blocks, 2)

	// Record 0 matches both branches: one appearance per block, never two
	// in the same block.
	assert.Equal(t, []int{0, 1}, ids(blocks[0]))
	assert.Equal(t, []int{0, 2}, ids(blocks[1]))
}

func TestBuildDeterministicOrder(t *testing.T) {
	recs := records(
		map[string]any{"phone": "777"},
		map[string]any{"phone": "555"},
		map[string]any{"phone": "777"},
	)

	first := Build(recs, Exact("phone"))
	second := Build(recs, Exact("phone"))
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, ids(first[i]), ids(second[i]))
	}
	// First-appearance order: 777 before 555.
	assert.Equal(t, []int{0, 2}, ids(first[0]))
}

func TestSingletonKeysAreUnique(t *testing.T) {
	recs := records(
		map[string]any{"name": "Amy"},
		map[string]any{"name": "Bea"},
	)
	blocks := Build(recs, Exact("phone"))
	require.Len(t, blocks, 2)
	assert.NotEqual(t, blocks[0].Key, blocks[1].Key)
	assert.Len(t, blocks[0].Records, 1)
	assert.Len(t, blocks[1].Records, 1)
}

func ids(b Block) []int {
	out := make([]int, len(b.Records))
	for i, r := range b.Records {
		out[i] = r.ID
	}
	return out
}
