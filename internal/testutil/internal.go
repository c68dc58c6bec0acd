package testutil

import (
	"sort"
)

// DedupStrings returns the sorted set of distinct strings in sl.
func DedupStrings(sl []string) (uniq []string) {
	m := make(map[string]bool)
	for _, s := range sl {
		if _, ok := m[s]; !ok {
			uniq = append(uniq, s)
			m[s] = true
		}
	}
	sort.Strings(uniq)
	return uniq
}

// MergeMap merges a into b and returns b, overriding keys present in
// both with a's values.
func MergeMap(a, b map[string]interface{}) map[string]interface{} {
	if b == nil {
		return a
	}
	for k, v := range a {
		b[k] = v
	}
	return b
}
