package variables

import (
	"sort"
	"strings"
)

// Entities maps provenance keys (subject, run, task, ...) to values.
type Entities map[string]string

// entityOrder is the canonical ordering for well-known keys. Unknown keys
// follow alphabetically.
var entityOrder = map[string]int{
	"subject":     0,
	"session":     1,
	"task":        2,
	"acquisition": 3,
	"run":         4,
}

// Clone returns an independent copy. The clone of nil is an empty map.
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Keys returns the keys in canonical order.
func (e Entities) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	SortEntityKeys(keys)
	return keys
}

// Equal reports whether both maps hold the same pairs.
func (e Entities) Equal(other Entities) bool {
	if len(e) != len(other) {
		return false
	}
	for k, v := range e {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// String renders the pairs in canonical key order, e.g. "subject=01 run=1".
func (e Entities) String() string {
	var b strings.Builder
	for i, k := range e.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e[k])
	}
	return b.String()
}

// SortEntityKeys sorts keys in canonical order in place.
func SortEntityKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		oi, iKnown := entityOrder[keys[i]]
		oj, jKnown := entityOrder[keys[j]]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

// Consensus returns the pairs shared by every input: a key survives only if
// all sets carry it and the set of its distinct values has exactly one
// member. Consensus of no sets is empty.
func Consensus(sets ...Entities) Entities {
	out := Entities{}
	if len(sets) == 0 {
		return out
	}
	for k, v := range sets[0] {
		agreed := true
		for _, s := range sets[1:] {
			if sv, ok := s[k]; !ok || sv != v {
				agreed = false
				break
			}
		}
		if agreed {
			out[k] = v
		}
	}
	return out
}
