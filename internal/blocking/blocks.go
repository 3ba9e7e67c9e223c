package blocking

import (
	"fmt"

	"github.com/recordkit/dedupe/internal/types"
)

// Block is a group of records sharing a block key. Records inside a block
// keep their input order; the same record may appear in several blocks
// when Or rules are in effect.
type Block struct {
	Key     Key
	Records []types.Record
}

// Build groups records into candidate blocks under the given rule. A
// record whose rule evaluation yields no key still forms a block: it gets
// a reserved singleton key so that no record is ever silently dropped.
// Blocks are returned in first-appearance order of their keys, which makes
// construction deterministic for a given input order.
func Build(records []types.Record, rule *Rule) []Block {
	members := make(map[Key][]types.Record)
	var order []Key

	for _, rec := range records {
		keys := rule.Keys(rec)
		if len(keys) == 0 {
			keys = []Key{singletonKey(rec.ID)}
		}
		for _, k := range keys {
			if _, seen := members[k]; !seen {
				order = append(order, k)
			}
			members[k] = append(members[k], rec)
		}
	}

	blocks := make([]Block, len(order))
	for i, k := range order {
		blocks[i] = Block{Key: k, Records: members[k]}
	}
	return blocks
}

// singletonKey is reserved for records matching no rule. The leading NUL
// cannot occur in rule-derived keys because leaf values strip control
// characters.
func singletonKey(id int) Key {
	return Key(fmt.Sprintf("\x00singleton:%d", id))
}
