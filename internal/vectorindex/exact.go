package vectorindex

// Exact is the brute-force index variant: vectors are stored contiguously
// and Search scores every one of them. O(n*dim) per query, 100% recall,
// fully deterministic — used when the caller wants reproducible ordering
// (and by the disk store's checkpoint path, which only ever serializes
// the exact variant).
type Exact struct {
	dim     int
	vectors [][]float32
}

// NewExact creates an empty exact index for the given dimension.
func NewExact(dim int) *Exact {
	return &Exact{dim: dim}
}

func (e *Exact) Insert(vector []float32) (int, error) {
	if err := checkDim("Exact.Insert", e.dim, vector); err != nil {
		return 0, err
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	key := len(e.vectors)
	e.vectors = append(e.vectors, vec)
	return key, nil
}

func (e *Exact) Search(query []float32, k int) ([]Result, error) {
	if err := checkDim("Exact.Search", e.dim, query); err != nil {
		return nil, err
	}
	if k <= 0 || len(e.vectors) == 0 {
		return nil, nil
	}
	candidates := make([]Result, len(e.vectors))
	for i, v := range e.vectors {
		candidates[i] = Result{Key: i, DistSq: squaredEuclidean(query, v)}
	}
	return topK(candidates, k), nil
}

func (e *Exact) Len() int { return len(e.vectors) }
func (e *Exact) Dim() int { return e.dim }

var _ Index = (*Exact)(nil)
