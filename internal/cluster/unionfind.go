package cluster

// UnionFind is a disjoint-set structure over record identifiers, used to
// merge block-local cluster labels into global clusters. Two records end
// in the same set exactly when some chain of local co-cluster links
// connects them, so transitive merges across blocks (A~B in one block,
// B~C in another) come out right. Union order does not affect the final
// partition.
//
// UnionFind is not safe for concurrent use; the orchestrator applies all
// merges in a single serialized pass after the sub-block workers finish.
type UnionFind struct {
	parent map[int]int
	rank   map[int]int
}

// NewUnionFind returns an empty structure. Elements are added lazily on
// first Find or Union.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[int]int),
		rank:   make(map[int]int),
	}
}

// Find returns the representative of x's set, with path compression.
func (u *UnionFind) Find(x int) int {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.Find(p)
	u.parent[x] = root
	return root
}

// Union merges the sets containing a and b.
func (u *UnionFind) Union(a, b int) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

// Sets returns the current partition as a map from representative to the
// members of its set.
func (u *UnionFind) Sets() map[int][]int {
	out := make(map[int][]int)
	for x := range u.parent {
		root := u.Find(x)
		out[root] = append(out[root], x)
	}
	return out
}
