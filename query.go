package agenticmemory

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sathvikkurap/agenticmemory/internal/vectorindex"
)

// overfetchFactor (M in the design notes) controls how many candidates
// are pulled from the index backend before filtering: K' = max(topK*M,
// topK). M=4 is sufficient for the selectivity regimes this store is
// tuned for; it is not a user-visible knob.
const overfetchFactor = 4

// candidate pairs a resolved episode with its vector distance, carried
// through filtering and sorting without re-walking the index or the
// episode map.
type candidate struct {
	episode Episode
	distSq  float32
}

// evaluateQuery is the query evaluator shared by the in-memory store and
// the disk store: it asks idx for nearest-neighbour candidates, resolves
// them through keyToID/episodes, applies opts' filter predicates, and
// returns the first opts.TopK survivors in (distance asc, timestamp desc
// with undefined last, id asc) order.
func evaluateQuery(
	op string,
	idx vectorindex.Index,
	dim int,
	episodes map[uuid.UUID]Episode,
	keyToID map[int]uuid.UUID,
	opts QueryOptions,
) ([]Episode, error) {
	if len(opts.QueryEmbedding) != dim {
		return nil, newDimensionMismatch(op, "query_embedding length does not match store dimension")
	}
	if err := opts.validate(op); err != nil {
		return nil, err
	}
	if opts.TopK == 0 {
		return []Episode{}, nil
	}

	tagsAny := tagSet(opts.TagsAny)
	tagsAll := tagSet(opts.TagsAll)

	kPrime := opts.TopK * overfetchFactor
	if kPrime < opts.TopK {
		kPrime = opts.TopK
	}
	searchCap := idx.Len()

	var survivors []candidate
	for {
		results, err := idx.Search(opts.QueryEmbedding, kPrime)
		if err != nil {
			return nil, err
		}

		survivors = survivors[:0]
		for _, r := range results {
			id, ok := keyToID[r.Key]
			if !ok {
				continue // defensive: invariant guarantees presence
			}
			ep, ok := episodes[id]
			if !ok {
				continue
			}
			if !passesFilters(ep, opts, tagsAny, tagsAll) {
				continue
			}
			survivors = append(survivors, candidate{episode: ep, distSq: r.DistSq})
		}

		gotExactlyKPrime := len(results) == kPrime
		if len(survivors) >= opts.TopK || !gotExactlyKPrime || kPrime >= searchCap {
			break
		}
		kPrime *= 2
		if kPrime > searchCap {
			kPrime = searchCap
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.distSq != b.distSq {
			return a.distSq < b.distSq
		}
		ta, tb := a.episode.Timestamp, b.episode.Timestamp
		switch {
		case ta == nil && tb == nil:
			// fall through to id tie-break
		case ta == nil:
			return false // undefined timestamps sort last
		case tb == nil:
			return true
		case *ta != *tb:
			return *ta > *tb // descending: more recent wins
		}
		return a.episode.ID.String() < b.episode.ID.String()
	})

	if len(survivors) > opts.TopK {
		survivors = survivors[:opts.TopK]
	}

	out := make([]Episode, len(survivors))
	for i, c := range survivors {
		out[i] = c.episode
	}
	return out, nil
}

func passesFilters(ep Episode, opts QueryOptions, tagsAny, tagsAll map[string]struct{}) bool {
	if ep.Reward < opts.MinReward {
		return false
	}
	if len(tagsAny) > 0 && !hasAnyTag(ep.Tags, tagsAny) {
		return false
	}
	if len(tagsAll) > 0 && !hasAllTags(ep.Tags, tagsAll) {
		return false
	}
	if opts.TimeAfter != nil {
		if ep.Timestamp == nil || *ep.Timestamp < *opts.TimeAfter {
			return false
		}
	}
	if opts.TimeBefore != nil {
		if ep.Timestamp == nil || *ep.Timestamp > *opts.TimeBefore {
			return false
		}
	}
	if opts.TaskIDPrefix != "" && !strings.HasPrefix(ep.TaskID, opts.TaskIDPrefix) {
		return false
	}
	if opts.Source != "" && ep.Source != opts.Source {
		return false
	}
	if opts.UserID != "" && ep.UserID != opts.UserID {
		return false
	}
	return true
}
