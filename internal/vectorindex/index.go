// Package vectorindex implements the two vector index backends used by
// the episode store: an approximate navigable-small-world graph backed by
// coder/hnsw, and an exact brute-force scan. Both satisfy Index so the
// store can hold either behind a single field.
package vectorindex

import (
	"sort"

	"github.com/sathvikkurap/agenticmemory/internal/errs"
)

// Result is one candidate returned by Search: the internal key assigned
// at Insert time, and the squared Euclidean distance to the query.
type Result struct {
	Key    int
	DistSq float32
}

// Index is the capability every backend implements. Keys are assigned by
// Insert in monotonically increasing order starting at 0; the backends
// never support random deletion, which is why the episode store prunes
// by bulk rebuild rather than by removing individual keys.
type Index interface {
	// Insert appends vector and returns its internal key.
	Insert(vector []float32) (int, error)
	// Search returns up to k nearest neighbours ordered by distance
	// ascending. Fewer than k may come back if the index holds fewer
	// elements than k.
	Search(query []float32, k int) ([]Result, error)
	Len() int
	Dim() int
}

// squaredEuclidean computes ||a-b||^2. Both index backends share this so
// that distances returned by the approximate and exact variants are
// directly comparable.
func squaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func checkDim(op string, dim int, v []float32) error {
	if len(v) != dim {
		return errs.New(errs.DimensionMismatch, op, "vector length does not match store dimension")
	}
	return nil
}

// topK sorts all candidates by DistSq ascending and truncates to k.
// Used by the exact backend, where every candidate is collected first.
func topK(candidates []Result, k int) []Result {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistSq < candidates[j].DistSq
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}
