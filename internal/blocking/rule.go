// Package blocking partitions records into candidate blocks so that only
// likely-similar records are compared pairwise.
//
// A Rule maps a record to zero or more block keys. Rules compose: And
// produces a tuple key and matches only when both sides match; Or places
// the record into the union of the blocks produced by each side. Records
// that match no rule are never dropped; block construction gives them a
// singleton block of their own.
package blocking

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/recordkit/dedupe/internal/types"
)

// Key is an opaque, hashable block key. Records sharing a key belong to
// the same candidate block.
type Key string

type op int

const (
	opExact op = iota
	opPhonetic
	opFirstNChars
	opAbbreviation
	opAnd
	opOr
)

// Rule is one node of the blocking-rule tree. Leaves derive a key from a
// single attribute; And and Or combine sub-rules. The zero value is not a
// valid rule; use the constructors.
type Rule struct {
	op          op
	attr        string
	n           int
	left, right *Rule
}

// Exact blocks on the attribute's case-folded value.
func Exact(attr string) *Rule {
	return &Rule{op: opExact, attr: attr}
}

// Phonetic blocks on the soundex code of the attribute value, so that
// "Jon" and "John" share a block.
func Phonetic(attr string) *Rule {
	return &Rule{op: opPhonetic, attr: attr}
}

// FirstNChars blocks on the first n characters of each word of the value,
// sorted and concatenated.
func FirstNChars(attr string, n int) *Rule {
	return &Rule{op: opFirstNChars, attr: attr, n: n}
}

// Abbreviation blocks on the n-letter abbreviation of the value: the first
// letter of each word, sorted, truncated to n letters.
func Abbreviation(attr string, n int) *Rule {
	return &Rule{op: opAbbreviation, attr: attr, n: n}
}

// And returns the conjunction of two rules. The composite key is the tuple
// of both sub-keys; if either side yields no key the conjunction yields no
// key.
func And(left, right *Rule) *Rule {
	return &Rule{op: opAnd, left: left, right: right}
}

// Or returns the disjunction of two rules. A record lands in the union of
// the blocks produced independently by each side.
func Or(left, right *Rule) *Rule {
	return &Rule{op: opOr, left: left, right: right}
}

// And returns the conjunction of r and other.
func (r *Rule) And(other *Rule) *Rule { return And(r, other) }

// Or returns the disjunction of r and other.
func (r *Rule) Or(other *Rule) *Rule { return Or(r, other) }

// Attributes is sugar for an And-chain of Exact rules over the given
// attribute names (dot-paths allowed). It returns nil for an empty list.
func Attributes(attrs ...string) *Rule {
	var rule *Rule
	for _, a := range attrs {
		if rule == nil {
			rule = Exact(a)
		} else {
			rule = And(rule, Exact(a))
		}
	}
	return rule
}

// Validate checks the rule tree for construction errors.
func (r *Rule) Validate() error {
	switch r.op {
	case opAnd, opOr:
		if r.left == nil || r.right == nil {
			return fmt.Errorf("composite rule requires two sub-rules")
		}
		if err := r.left.Validate(); err != nil {
			return err
		}
		return r.right.Validate()
	case opFirstNChars, opAbbreviation:
		if r.n <= 0 {
			return fmt.Errorf("rule %s requires n > 0 (got %d)", r.opName(), r.n)
		}
		fallthrough
	case opExact, opPhonetic:
		if r.attr == "" {
			return fmt.Errorf("rule %s requires an attribute name", r.opName())
		}
		return nil
	default:
		return fmt.Errorf("unknown rule op %d", r.op)
	}
}

// tupleSep joins the components of an And key. It cannot collide with
// attribute values because leaf keys strip control characters.
const tupleSep = "\x1f"

// Keys evaluates the rule against a record. The result is empty when the
// record matches no leaf (an attribute missing on the record yields no key
// for that leaf, not an error). Under Or a record can produce several
// keys; duplicates are removed so a record never appears twice in one
// block.
func (r *Rule) Keys(rec types.Record) []Key {
	keys := r.eval(rec)
	if len(keys) <= 1 {
		return keys
	}
	seen := make(map[Key]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (r *Rule) eval(rec types.Record) []Key {
	switch r.op {
	case opAnd:
		lks := r.left.eval(rec)
		if len(lks) == 0 {
			return nil
		}
		rks := r.right.eval(rec)
		if len(rks) == 0 {
			return nil
		}
		out := make([]Key, 0, len(lks)*len(rks))
		for _, lk := range lks {
			for _, rk := range rks {
				out = append(out, lk+tupleSep+rk)
			}
		}
		return out
	case opOr:
		return append(r.left.eval(rec), r.right.eval(rec)...)
	default:
		raw, ok := rec.GetString(r.attr)
		if !ok {
			return nil
		}
		code, ok := r.encode(raw)
		if !ok {
			return nil
		}
		return []Key{Key(r.opName() + "(" + r.attr + ")=" + code)}
	}
}

var keyFolder = cases.Fold()

// encode derives the leaf key component from a raw attribute value.
// An empty derivation is treated as no match.
func (r *Rule) encode(raw string) (string, bool) {
	value := sanitize(keyFolder.String(raw))
	if value == "" {
		return "", false
	}
	switch r.op {
	case opExact:
		return value, true
	case opPhonetic:
		words := strings.Fields(value)
		codes := make([]string, 0, len(words))
		for _, w := range words {
			if c := soundex(w); c != "" {
				codes = append(codes, c)
			}
		}
		if len(codes) == 0 {
			return "", false
		}
		sort.Strings(codes)
		return strings.Join(codes, ""), true
	case opFirstNChars:
		words := strings.Fields(value)
		parts := make([]string, 0, len(words))
		for _, w := range words {
			runes := []rune(w)
			if len(runes) > r.n {
				runes = runes[:r.n]
			}
			parts = append(parts, string(runes))
		}
		if len(parts) == 0 {
			return "", false
		}
		sort.Strings(parts)
		return strings.Join(parts, ""), true
	case opAbbreviation:
		words := strings.Fields(value)
		letters := make([]string, 0, len(words))
		for _, w := range words {
			letters = append(letters, string([]rune(w)[:1]))
		}
		if len(letters) == 0 {
			return "", false
		}
		sort.Strings(letters)
		if len(letters) > r.n {
			letters = letters[:r.n]
		}
		return strings.Join(letters, ""), true
	}
	return "", false
}

// sanitize strips control characters so values cannot forge tuple keys,
// and trims surrounding whitespace.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func (r *Rule) opName() string {
	switch r.op {
	case opExact:
		return "exact"
	case opPhonetic:
		return "phonetic"
	case opFirstNChars:
		return fmt.Sprintf("first%d", r.n)
	case opAbbreviation:
		return fmt.Sprintf("abbr%d", r.n)
	case opAnd:
		return "and"
	case opOr:
		return "or"
	}
	return "unknown"
}

// String renders the rule tree, e.g. "(exact(phone) & phonetic(name))".
func (r *Rule) String() string {
	switch r.op {
	case opAnd:
		return "(" + r.left.String() + " & " + r.right.String() + ")"
	case opOr:
		return "(" + r.left.String() + " | " + r.right.String() + ")"
	default:
		return r.opName() + "(" + r.attr + ")"
	}
}
