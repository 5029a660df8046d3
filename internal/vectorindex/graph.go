package vectorindex

import (
	"github.com/coder/hnsw"

	"github.com/sathvikkurap/agenticmemory/internal/errs"
)

// DefaultMaxElements is the capacity hint used when a caller does not
// request a specific ceiling for the approximate index.
const DefaultMaxElements = 20000

// defaultM and defaultEfSearch mirror the coder/hnsw package's own
// recommended defaults for graph fan-out and query-time search width.
const (
	defaultM        = 16
	defaultEfSearch = 20
)

// Graph is the approximate index variant: a navigable small-world graph
// with sublinear expected query cost and sub-100% recall. Recall loss is
// acceptable here because the query evaluator's overfetch and recency
// tie-break compensate for an occasional missed neighbour.
type Graph struct {
	dim         int
	maxElements int
	nextKey     int
	g           *hnsw.Graph[int]
}

// NewGraph creates an empty approximate index capped at maxElements
// vectors. maxElements is a capacity hint the backend enforces itself;
// coder/hnsw does not pre-allocate storage for it.
func NewGraph(dim, maxElements int) *Graph {
	g := hnsw.NewGraph[int]()
	g.Distance = squaredEuclidean
	g.M = defaultM
	g.EfSearch = defaultEfSearch
	g.Ml = 0.25 // the package's own default level-generation factor
	return &Graph{dim: dim, maxElements: maxElements, g: g}
}

func (idx *Graph) Insert(vector []float32) (int, error) {
	if err := checkDim("Graph.Insert", idx.dim, vector); err != nil {
		return 0, err
	}
	if idx.nextKey >= idx.maxElements {
		return 0, errs.New(errs.CapacityExceeded, "Graph.Insert", "index is at its configured max_elements")
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	key := idx.nextKey
	idx.nextKey++
	idx.g.Add(hnsw.MakeNode(key, vec))
	return key, nil
}

func (idx *Graph) Search(query []float32, k int) ([]Result, error) {
	if err := checkDim("Graph.Search", idx.dim, query); err != nil {
		return nil, err
	}
	if k <= 0 || idx.g.Len() == 0 {
		return nil, nil
	}
	nodes := idx.g.Search(query, k)
	results := make([]Result, len(nodes))
	for i, n := range nodes {
		results[i] = Result{Key: n.Key, DistSq: idx.g.Distance(query, n.Value)}
	}
	return results, nil
}

func (idx *Graph) Len() int { return idx.g.Len() }
func (idx *Graph) Dim() int { return idx.dim }

// MaxElements reports the configured capacity ceiling.
func (idx *Graph) MaxElements() int { return idx.maxElements }

var _ Index = (*Graph)(nil)
