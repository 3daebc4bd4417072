// Package similarity compares the index sets produced by a learning module.
// All functions are pure and treat their inputs as sets: order and duplicate
// entries are ignored.
package similarity

import "sort"

// Set is a sorted, de-duplicated list of non-negative indices.
type Set []int

// Normalize returns a sorted copy of indices with duplicates removed.
// The input slice is not modified. A nil or empty input yields an empty,
// non-nil Set.
func Normalize(indices []int) Set {
	out := make(Set, len(indices))
	copy(out, indices)
	sort.Ints(out)

	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

// Jaccard computes |A ∩ B| / |A ∪ B| for two index sets.
// Returns 0.0 if both are empty.
func Jaccard(a, b []int) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.0
	}

	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for v := range setA {
		if setB[v] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// Equal reports whether a and b contain exactly the same indices.
func Equal(a, b []int) bool {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if !setB[v] {
			return false
		}
	}
	return true
}

// Contains reports whether s holds v. s must be normalized.
func (s Set) Contains(v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

func toSet(indices []int) map[int]bool {
	m := make(map[int]bool, len(indices))
	for _, v := range indices {
		m[v] = true
	}
	return m
}
