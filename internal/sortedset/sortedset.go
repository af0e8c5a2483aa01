// Package sortedset gives deterministic iteration order to small
// integer-keyed maps (spill ids, Temp ids) by returning their keys
// sorted ascending. No package in this module imports it; the spiller
// sorts its Temp ids with its own sortTempIDs.
package sortedset

import "sort"

// Uint32Keys returns the keys of m sorted ascending.
func Uint32Keys[K ~uint32, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Int32Keys returns the keys of m sorted ascending.
func Int32Keys[K ~int32, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
