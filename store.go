package agenticmemory

import (
	"sort"

	"github.com/google/uuid"

	"github.com/sathvikkurap/agenticmemory/internal/vectorindex"
)

// Store is the in-memory episode store: a mapping from stable ids to
// episode records, backed by a vector index that holds state embeddings
// in internal-key order. It performs no internal locking — per the
// concurrency model, a caller that needs concurrent access wraps a Store
// in its own reader-writer lock (store/prune/save/load need exclusive
// access, query needs only shared access).
type Store struct {
	dim         int
	maxElements int
	exact       bool

	idx      vectorindex.Index
	episodes map[uuid.UUID]Episode
	keyToID  map[int]uuid.UUID
}

// New creates an empty store backed by the approximate graph index with
// the default max_elements capacity hint.
func New(dim int) (*Store, error) {
	return NewWithMaxElements(dim, vectorindex.DefaultMaxElements)
}

// NewWithMaxElements creates an empty store backed by the approximate
// graph index, capped at n elements, so callers that expect to exceed
// the default capacity can avoid CapacityExceeded.
func NewWithMaxElements(dim, n int) (*Store, error) {
	if err := validateNewArgs(dim, n); err != nil {
		return nil, err
	}
	return &Store{
		dim:         dim,
		maxElements: n,
		exact:       false,
		idx:         vectorindex.NewGraph(dim, n),
		episodes:    make(map[uuid.UUID]Episode),
		keyToID:     make(map[int]uuid.UUID),
	}, nil
}

// NewExact creates an empty store backed by the exact (brute-force)
// index: 100% recall, O(n*dim) query cost, fully deterministic ordering.
func NewExact(dim int) (*Store, error) {
	if dim <= 0 {
		return nil, newInvalidArgument("NewExact", "dim must be positive")
	}
	return &Store{
		dim:      dim,
		exact:    true,
		idx:      vectorindex.NewExact(dim),
		episodes: make(map[uuid.UUID]Episode),
		keyToID:  make(map[int]uuid.UUID),
	}, nil
}

func validateNewArgs(dim, maxElements int) error {
	if dim <= 0 {
		return newInvalidArgument("New", "dim must be positive")
	}
	if maxElements <= 0 {
		return newInvalidArgument("New", "max_elements must be positive")
	}
	return nil
}

// Dim returns the store's fixed embedding dimension.
func (s *Store) Dim() int { return s.dim }

// Len returns the number of episodes currently held.
func (s *Store) Len() int { return len(s.episodes) }

// Store validates and inserts ep, assigning an id if ep.ID is the zero
// UUID. On success the returned id is stable for the episode's lifetime.
func (s *Store) Store(ep Episode) (uuid.UUID, error) {
	if len(ep.StateEmbedding) != s.dim {
		return uuid.Nil, newDimensionMismatch("Store.Store", "embedding length does not match store dimension")
	}
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	ep.Tags = canonicalTags(ep.Tags)

	key, err := s.idx.Insert(ep.StateEmbedding)
	if err != nil {
		return uuid.Nil, err
	}
	s.keyToID[key] = ep.ID
	s.episodes[ep.ID] = ep
	return ep.ID, nil
}

// applyStored installs an episode that already has its id assigned and
// its tags canonicalized — the log/checkpoint replay path, where the
// record shape is already final and must not be re-logged or re-tagged.
func (s *Store) applyStored(ep Episode) error {
	if len(ep.StateEmbedding) != s.dim {
		return newDimensionMismatch("Store.applyStored", "embedding length does not match store dimension")
	}
	key, err := s.idx.Insert(ep.StateEmbedding)
	if err != nil {
		return err
	}
	s.keyToID[key] = ep.ID
	s.episodes[ep.ID] = ep
	return nil
}

// Query delegates to the shared query evaluator.
func (s *Store) Query(opts QueryOptions) ([]Episode, error) {
	return evaluateQuery("Store.Query", s.idx, s.dim, s.episodes, s.keyToID, opts)
}

// PruneOlderThan retains episodes with no timestamp or with
// timestamp >= cutoffMs, and returns the number removed.
func (s *Store) PruneOlderThan(cutoffMs int64) (int, error) {
	before := len(s.episodes)
	survivors := make([]Episode, 0, before)
	for _, ep := range s.episodes {
		if ep.Timestamp == nil || *ep.Timestamp >= cutoffMs {
			survivors = append(survivors, ep)
		}
	}
	if err := s.rebuild(survivors); err != nil {
		return 0, err
	}
	return before - len(survivors), nil
}

// PruneKeepNewest retains the n episodes with the greatest timestamps;
// episodes without a timestamp sort oldest (pruned first). Ties among
// timestamped episodes are broken by internal-key order (stable sort),
// which is insertion order only since the index was last built: a prune
// or a load reinserts episodes in id-sorted order.
func (s *Store) PruneKeepNewest(n int) (int, error) {
	before := len(s.episodes)
	all := s.episodesInOriginalOrder()

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Timestamp, all[j].Timestamp
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false // a sorts after (older)
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	survivors := all[:n]
	if err := s.rebuild(survivors); err != nil {
		return 0, err
	}
	return before - len(survivors), nil
}

// PruneKeepHighestReward retains the n episodes with the greatest
// reward. Ties are broken by higher timestamp first; episodes without a
// timestamp sort last within a reward tie group.
func (s *Store) PruneKeepHighestReward(n int) (int, error) {
	before := len(s.episodes)
	all := s.episodesInOriginalOrder()

	sort.SliceStable(all, func(i, j int) bool {
		ea, eb := all[i], all[j]
		if ea.Reward != eb.Reward {
			return ea.Reward > eb.Reward
		}
		ta, tb := ea.Timestamp, eb.Timestamp
		switch {
		case ta == nil && tb == nil:
			return false
		case ta == nil:
			return false
		case tb == nil:
			return true
		default:
			return *ta > *tb
		}
	})

	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	survivors := all[:n]
	if err := s.rebuild(survivors); err != nil {
		return 0, err
	}
	return before - len(survivors), nil
}

// episodesInOriginalOrder returns episodes ordered by their internal key
// (insertion order since the index was last built; rebuild and load
// reinsert in id-sorted order), which is what the prune operations use
// as the stable baseline before sorting on timestamp/reward.
func (s *Store) episodesInOriginalOrder() []Episode {
	keys := make([]int, 0, len(s.keyToID))
	for k := range s.keyToID {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]Episode, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.episodes[s.keyToID[k]])
	}
	return out
}

// rebuild is the bulk-rebuild protocol shared by every prune operation:
// allocate a fresh index of the same variant/dimension, clear keyToID,
// and reinsert survivors in id-sorted order for determinism. The old
// index and mappings are discarded only once the new ones are fully
// populated.
func (s *Store) rebuild(survivors []Episode) error {
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].ID.String() < survivors[j].ID.String()
	})

	maxElements := s.maxElements
	if maxElements < len(survivors) {
		maxElements = len(survivors)
	}

	var newIdx vectorindex.Index
	if s.exact {
		newIdx = vectorindex.NewExact(s.dim)
	} else {
		newIdx = vectorindex.NewGraph(s.dim, maxElements)
	}

	newKeyToID := make(map[int]uuid.UUID, len(survivors))
	newEpisodes := make(map[uuid.UUID]Episode, len(survivors))
	for _, ep := range survivors {
		key, err := newIdx.Insert(ep.StateEmbedding)
		if err != nil {
			return err
		}
		newKeyToID[key] = ep.ID
		newEpisodes[ep.ID] = ep
	}

	s.maxElements = maxElements
	s.idx = newIdx
	s.keyToID = newKeyToID
	s.episodes = newEpisodes
	return nil
}
